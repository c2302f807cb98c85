package pubsub

import "p2pstreamd/internal/ring"

// Output is one event Pubsub wants to hand to its caller. The set is
// closed: Pubsub has no notion of "upstream" and cannot resolve a
// connection for Sub/Unsub itself, so it emits the abstract intents
// below and leaves resolution to whoever composes it (the Runner).
type Output interface{ isOutput() }

// SendSub asks the caller to subscribe upstream to Channel, resolving
// the target via the router and pinning it for the lifetime of this
// node's interest.
type SendSub struct{ Channel ring.ChannelId }

// SendUnsub asks the caller to unsubscribe from Channel on whichever
// connection was pinned for it, and then unpin it.
type SendUnsub struct{ Channel ring.ChannelId }

// SendData asks the caller to relay Data for Channel to the peer on
// the other end of Conn, one per interested remote connection.
type SendData struct {
	Conn    ring.Connection
	Channel ring.ChannelId
	Data    []byte
}

// OnChannelData is payload delivered to this node's own local
// subscriber; the caller surfaces it to the host unchanged.
type OnChannelData struct {
	Channel ring.ChannelId
	Data    []byte
}

func (SendSub) isOutput()       {}
func (SendUnsub) isOutput()     {}
func (SendData) isOutput()      {}
func (OnChannelData) isOutput() {}
