package runner

import (
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/router"
	"p2pstreamd/internal/wire"
)

// InputEvent is one thing the host is telling the Runner happened:
// a message arrived, a connection's quality estimate changed, or a
// connection was torn down. The set is closed, matching the other
// tagged-variant boundaries in this module.
type InputEvent interface{ isInputEvent() }

// Recv is an inbound protocol message received over conn. The Runner
// dispatches it to whichever sub-engine owns that wire.Message variant.
type Recv struct {
	Conn ring.Connection
	Msg  wire.Message
}

// Stats reports the host's latest quality estimate for conn.
type Stats struct {
	Conn  ring.Connection
	Stats router.ConnectionStats
}

// Disconnected reports that conn is gone. The Router purges every path
// learned over it; the Runner also drops it as a pinned upstream for
// any channel, so a future SendSub re-resolves a next hop instead of
// addressing a connection that no longer exists.
type Disconnected struct {
	Conn ring.Connection
}

func (Recv) isInputEvent()         {}
func (Stats) isInputEvent()        {}
func (Disconnected) isInputEvent() {}

// OutputEvent is one thing the Runner wants the host to do.
type OutputEvent interface{ isOutputEvent() }

// Send asks the host to deliver Msg over an already-established Conn.
type Send struct {
	Conn ring.Connection
	Msg  wire.Message
}

// Dial asks the host to reach Remote at Address — this node has only
// heard about it secondhand and has no live connection to reuse — and
// deliver Msg once connected.
type Dial struct {
	Address string
	Remote  ring.NodeId
	Msg     wire.Message
}

// ChannelData is payload delivered to this node's own local
// subscriber, surfaced to the host unchanged.
type ChannelData struct {
	Channel ring.ChannelId
	Data    []byte
}

func (Send) isOutputEvent()        {}
func (Dial) isOutputEvent()        {}
func (ChannelData) isOutputEvent() {}
