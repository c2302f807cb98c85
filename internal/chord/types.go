// Package chord maintains a node's position on a 32-bit identifier
// ring: its immediate successor, a 32-entry finger table, and a
// predecessor pointer, and answers find_successor queries on behalf of
// itself and of remote nodes forwarding through it.
//
// The engine is single-threaded and I/O-free: every exported method
// takes the caller's own notion of the current time (now_ms) and
// returns without blocking; outbound protocol messages accumulate in
// an internal queue drained by PopAction.
package chord

import (
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/wire"
)

// fingerCount is the width of the finger table: one entry per bit of
// the 32-bit identifier space.
const fingerCount = 32

// NodeInfo is what this node knows about another ring member: its
// identifier, its host-supplied address (opaque to this package, kept
// only to hand back to the host for dialing), the connection the host
// last delivered a message from it on (the zero Connection if none is
// currently known), and liveness bookkeeping.
type NodeInfo struct {
	NodeId    ring.NodeId
	Address   string
	Conn      ring.Connection
	CreatedAt int64
	LastPong  int64 // 0 means "never".
}

// requestKind distinguishes the two shapes of outstanding request this
// package tracks, so a reply arriving against the wrong kind of slot
// is recognized as a protocol violation rather than silently misapplied.
type requestKind int

const (
	kindSuccessor requestKind = iota
	kindPredecessor
)

// requestSource names who should receive the eventual answer to a
// pending request: this node acting on its own behalf (to seed a
// finger slot, or as part of stabilization), or a remote node whose
// request this node is forwarding.
type requestSource int

const (
	// sourceRemote means the answer must be forwarded back to a
	// remote node over remoteConn, tagged with remoteReqId.
	sourceRemote requestSource = iota
	// sourceLocalSuccessor means the answer should be written into
	// finger[fingerSlot] (slot 0 is the immediate successor).
	sourceLocalSuccessor
	// sourceLocalPredecessor means this was stabilize's query to the
	// successor for its predecessor.
	sourceLocalPredecessor
)

// requestSlot is one outstanding FindSuccessor/FindPredecessor this
// node issued, keyed by a locally allocated request id.
type requestSlot struct {
	kind   requestKind
	source requestSource
	ts     int64
	key    ring.NodeId // meaningful only for kindSuccessor

	// Set when source == sourceRemote: who to answer, and with which
	// request id and identity they used when they asked us.
	remoteConn  ring.Connection
	remoteReqId uint32
	remoteNode  ring.NodeId

	// Set when source == sourceLocalSuccessor.
	fingerSlot int
}

// Action is an outbound protocol message this package wants delivered.
// Conn is the last connection known for the target, or the zero
// Connection if this node has only ever heard about the target
// secondhand; Address is its advertised dial address for the host to
// use in that case. Establishing or reusing the connection is the
// host's job — this package never performs I/O.
type Action struct {
	Conn    ring.Connection
	Address string
	Remote  ring.NodeId
	Msg     wire.Message
}

// toWire strips the host-connection bookkeeping this package attaches
// to a NodeInfo before the identifier is put on the wire.
func (n NodeInfo) toWire() wire.PeerInfo {
	return wire.PeerInfo{
		NodeId:    n.NodeId,
		Address:   n.Address,
		CreatedAt: n.CreatedAt,
		LastPong:  n.LastPong,
	}
}

// nodeInfoFromWire reconstructs a NodeInfo from its wire form, tagging
// it with the connection the host delivered it on (the zero Connection
// if this NodeInfo was learned about secondhand, e.g. via a forwarded
// FoundSuccessor rather than a message the node sent us directly).
func nodeInfoFromWire(p wire.PeerInfo, conn ring.Connection) NodeInfo {
	return NodeInfo{
		NodeId:    p.NodeId,
		Address:   p.Address,
		Conn:      conn,
		CreatedAt: p.CreatedAt,
		LastPong:  p.LastPong,
	}
}
