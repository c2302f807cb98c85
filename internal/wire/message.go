// Package wire defines the closed set of protocol messages exchanged
// between overlay nodes. The core never performs I/O itself — framing,
// transport, and encryption are the host's job (see Codec below for a
// reference length-delimited encoding a host may use, or replace).
package wire

import "p2pstreamd/internal/ring"

// Message is implemented by every wire-level variant. The set is
// closed: adding a variant is an API-breaking change to the core, so
// new message kinds are never accepted through an arbitrary interface
// parameter elsewhere in this module.
type Message interface {
	isMessage()
}

// RouterRow is one advertised path to a channel within a RouterSync.
type RouterRow struct {
	Channel   ring.ChannelId
	Bandwidth uint32 // kbps
	RTT       uint32 // ms
	Loss      float32 // percent
	Jitter    uint32 // ms
	Hops      []ring.NodeId
}

// RouterSync advertises a neighbor's best known paths to zero or more
// channels, one row per channel of interest.
type RouterSync struct {
	Rows []RouterRow
}

// ChannelSub asks the recipient to start forwarding ChannelData for
// Channel toward the sender.
type ChannelSub struct {
	Channel ring.ChannelId
}

// ChannelUnsub withdraws a prior ChannelSub.
type ChannelUnsub struct {
	Channel ring.ChannelId
}

// ChannelData carries a published payload for Channel.
type ChannelData struct {
	Channel ring.ChannelId
	Data    []byte
}

// PeerInfo is the wire representation of a ring member, carried inside
// Chord control messages. LastPong is 0 when no pong has ever been
// received (there is no wire-level "optional" marker beyond that).
type PeerInfo struct {
	NodeId    ring.NodeId
	Address   string
	CreatedAt int64
	LastPong  int64
}

// FindSuccessor asks the recipient to resolve the successor of Key.
// Remote names the node that should ultimately receive the answer —
// not necessarily the connection's other end, since the query may be
// forwarded across several hops.
type FindSuccessor struct {
	ReqId  uint32
	Key    ring.NodeId
	Remote ring.NodeId
}

// FoundSuccessor answers a FindSuccessor. Info is nil on a negative
// reply (timeout at some hop along the forwarding chain).
type FoundSuccessor struct {
	ReqId  uint32
	Info   *PeerInfo
	Remote ring.NodeId
}

// FindPredecessor asks the recipient to report its current predecessor.
type FindPredecessor struct {
	ReqId  uint32
	Remote ring.NodeId
}

// FoundPredecessor answers a FindPredecessor. Info is nil if the
// responder currently has no predecessor.
type FoundPredecessor struct {
	ReqId  uint32
	Info   *PeerInfo
	Remote ring.NodeId
}

// Notify tells the recipient that the sender believes it might be its
// predecessor.
type Notify struct {
	Remote ring.NodeId
	Info   PeerInfo
}

// PingPredecessor checks liveness of a predecessor relationship; Ts is
// echoed back unchanged in the matching PongPredecessor.
type PingPredecessor struct {
	Remote ring.NodeId
	Ts     int64
}

// PongPredecessor answers a PingPredecessor.
type PongPredecessor struct {
	Remote ring.NodeId
	Ts     int64
}

func (RouterSync) isMessage()       {}
func (ChannelSub) isMessage()       {}
func (ChannelUnsub) isMessage()     {}
func (ChannelData) isMessage()      {}
func (FindSuccessor) isMessage()    {}
func (FoundSuccessor) isMessage()   {}
func (FindPredecessor) isMessage()  {}
func (FoundPredecessor) isMessage() {}
func (Notify) isMessage()           {}
func (PingPredecessor) isMessage()  {}
func (PongPredecessor) isMessage()  {}
