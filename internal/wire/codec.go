package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// Codec is a reference length-delimited encoding for Message values.
// The core itself never calls this — wire serialization is the host's
// concern per the engine's design — but a host needs something
// concrete to frame messages over a stream transport, and this gives
// it a working default without committing the core to any particular
// schema.
type Codec struct{}

func init() {
	gob.Register(RouterSync{})
	gob.Register(ChannelSub{})
	gob.Register(ChannelUnsub{})
	gob.Register(ChannelData{})
	gob.Register(FindSuccessor{})
	gob.Register(FoundSuccessor{})
	gob.Register(FindPredecessor{})
	gob.Register(FoundPredecessor{})
	gob.Register(Notify{})
	gob.Register(PingPredecessor{})
	gob.Register(PongPredecessor{})
}

// envelope carries a Message through gob, which cannot encode an
// interface value directly without a concrete wrapper.
type envelope struct {
	Msg Message
}

// Encode writes a 4-byte big-endian length prefix followed by the
// gob-encoded message.
func (Codec) Encode(w io.Writer, msg Message) error {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(&envelope{Msg: msg}); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if body.Len() > 0xFFFFFFFF {
		return fmt.Errorf("message too large: %d bytes", body.Len())
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(body.Len()))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("write message body: %w", err)
	}
	return nil
}

// Decode reads one length-prefixed message previously written by
// Encode.
func (Codec) Decode(r io.Reader) (Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return env.Msg, nil
}
