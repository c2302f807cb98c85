package hostapi

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// gobCodec replaces grpc-go's default codec with a gob-based one, so
// this package's hand-written service can move plain Go structs over
// the wire without depending on generated protobuf stubs. It registers
// itself under grpc's reserved "proto" name, the usual trick for
// swapping grpc's wire codec without touching every call site's
// content-subtype.
type gobCodec struct{}

func (gobCodec) Name() string { return "proto" }

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("hostapi: gob marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("hostapi: gob unmarshal: %w", err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(gobCodec{})
}
