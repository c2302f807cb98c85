// Package runner composes the Chord membership engine, the channel
// Router, and the Pubsub overlay into the single facade an embedding
// host drives: P2pStreamRunner. It is the only package in this module
// that knows how the three sub-engines relate to one another — each of
// them only ever drains its own output queue, never calls another
// directly — and the only one that resolves Pubsub's abstract
// SendSub/SendUnsub intents against the Router's routing table.
//
// Like its sub-engines, Runner is single-threaded and I/O-free.
package runner

import (
	"p2pstreamd/internal/chord"
	"p2pstreamd/internal/logger"
	"p2pstreamd/internal/pubsub"
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/router"
	"p2pstreamd/internal/wire"
)

// Option configures a Runner at construction time.
type Option func(*Runner)

// WithLogger attaches a structured logger, propagated (under distinct
// names) to the Chord, Router, and Pubsub sub-engines.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// Runner is the sole public facade of the overlay core: P2pStreamRunner.
type Runner struct {
	logger logger.Logger

	chord  *chord.Chord
	router *router.Router
	pubsub *pubsub.Pubsub

	// remoteChannels pins, per channel this node has active interest
	// in, the upstream connection a Sub was last sent on, so the
	// matching Unsub is delivered to the same hop.
	remoteChannels map[ring.ChannelId]ring.Connection

	outputs []OutputEvent
}

// New builds a Runner for self, wiring Chord's three timeouts and
// Pubsub's subscription lease through to the sub-engines that own them.
func New(self chord.NodeInfo, requestTimeoutMs, predecessorWarmupMs, pongTimeoutMs, subscribeLeaseMs int64, opts ...Option) *Runner {
	r := &Runner{
		logger:         &logger.NopLogger{},
		remoteChannels: make(map[ring.ChannelId]ring.Connection),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.chord = chord.New(self, requestTimeoutMs, predecessorWarmupMs, pongTimeoutMs, chord.WithLogger(r.logger.Named("chord")))
	r.router = router.New(router.WithLogger(r.logger.Named("router")))
	r.pubsub = pubsub.New(subscribeLeaseMs, pubsub.WithLogger(r.logger.Named("pubsub")))
	return r
}

// Chord exposes the membership sub-engine for read-only inspection
// (e.g. admin status queries); the Runner is the only thing allowed to
// drive it.
func (r *Runner) Chord() *chord.Chord { return r.chord }

// Router exposes the channel-routing sub-engine for read-only
// inspection, the same way Chord is exposed.
func (r *Runner) Router() *router.Router { return r.router }

// PopOutput removes and returns the oldest pending output event.
func (r *Runner) PopOutput() (OutputEvent, bool) {
	if len(r.outputs) == 0 {
		return nil, false
	}
	o := r.outputs[0]
	r.outputs = r.outputs[1:]
	return o, true
}

func (r *Runner) emit(o OutputEvent) { r.outputs = append(r.outputs, o) }

// OnTick advances every sub-engine by one scheduling interval and
// drains their outputs. Ticking Chord's maintenance routines here
// (rather than leaving it untouched, as §4.4's prose literally
// enumerates only Router and Pubsub) is necessary for ring convergence
// to progress at all; see DESIGN.md.
func (r *Runner) OnTick(now int64) {
	r.chord.Stabilize(now)
	r.chord.FixFingers(now)
	r.chord.CheckPredecessor(now)
	r.chord.CheckTimeoutRequests(now)
	r.router.CreateSync(now)
	r.pubsub.OnTick(now)
	r.drain(now)
}

// OnMsg dispatches one inbound event to whichever sub-engine owns it.
func (r *Runner) OnMsg(now int64, ev InputEvent) {
	switch e := ev.(type) {
	case Recv:
		r.dispatchRecv(now, e.Conn, e.Msg)
	case Stats:
		r.router.ConnectionStats(e.Conn, e.Stats)
	case Disconnected:
		r.router.ConnectionDisconnected(e.Conn)
		for channel, conn := range r.remoteChannels {
			if conn == e.Conn {
				delete(r.remoteChannels, channel)
			}
		}
	}
	r.drain(now)
}

func (r *Runner) dispatchRecv(now int64, conn ring.Connection, msg wire.Message) {
	switch m := msg.(type) {
	case wire.RouterSync:
		r.router.Recv(now, conn, m)
	case wire.ChannelSub:
		r.pubsub.OnRemoteSub(now, conn, m.Channel)
	case wire.ChannelUnsub:
		r.pubsub.OnRemoteUnsub(conn, m.Channel)
	case wire.ChannelData:
		r.pubsub.OnRemoteData(m.Channel, m.Data)
	default:
		// Every remaining wire.Message variant is a Chord control
		// message; Chord itself ignores anything it doesn't own.
		r.chord.OnEvent(now, conn, msg)
	}
}

// drain pulls every pending action out of the three sub-engines and
// translates each into an OutputEvent for the host.
func (r *Runner) drain(now int64) {
	for {
		a, ok := r.chord.PopAction()
		if !ok {
			break
		}
		r.emit(translateChordAction(a))
	}
	for {
		a, ok := r.router.PopAction()
		if !ok {
			break
		}
		r.emit(Send{Conn: a.Conn, Msg: a.Msg})
	}
	for {
		o, ok := r.pubsub.PopOutput()
		if !ok {
			break
		}
		r.translatePubsubOutput(o)
	}
}

func translateChordAction(a chord.Action) OutputEvent {
	if !a.Conn.IsZero() {
		return Send{Conn: a.Conn, Msg: a.Msg}
	}
	return Dial{Address: a.Address, Remote: a.Remote, Msg: a.Msg}
}

// translatePubsubOutput resolves Pubsub's abstract Sub/Unsub intents
// against the Router's routing table, pinning and unpinning
// remoteChannels as interest is gained and lost.
func (r *Runner) translatePubsubOutput(o pubsub.Output) {
	switch v := o.(type) {
	case pubsub.SendSub:
		conn, pinned := r.remoteChannels[v.Channel]
		if !pinned {
			hop := r.router.NextHopFor(v.Channel)
			if hop.Kind != router.HopConnection {
				return
			}
			conn = hop.Conn
			r.remoteChannels[v.Channel] = conn
		}
		r.emit(Send{Conn: conn, Msg: wire.ChannelSub{Channel: v.Channel}})
	case pubsub.SendUnsub:
		conn, pinned := r.remoteChannels[v.Channel]
		if !pinned {
			return
		}
		delete(r.remoteChannels, v.Channel)
		r.emit(Send{Conn: conn, Msg: wire.ChannelUnsub{Channel: v.Channel}})
	case pubsub.SendData:
		r.emit(Send{Conn: v.Conn, Msg: wire.ChannelData{Channel: v.Channel, Data: v.Data}})
	case pubsub.OnChannelData:
		r.emit(ChannelData{Channel: v.Channel, Data: v.Data})
	}
}

// Subscribe records the host's own interest in channel. The Router
// needs no separate notice: it already learns routes to any channel a
// neighbor advertises, subscribed-to or not.
func (r *Runner) Subscribe(now int64, channel ring.ChannelId) {
	r.pubsub.SubChannel(channel)
	r.drain(now)
}

// Unsubscribe withdraws the host's own interest in channel.
func (r *Runner) Unsubscribe(now int64, channel ring.ChannelId) {
	r.pubsub.UnsubChannel(channel)
	r.drain(now)
}

// Publish relays data on channel to every current subscriber, local
// and remote.
func (r *Runner) Publish(now int64, channel ring.ChannelId, data []byte) {
	r.pubsub.PubChannel(channel, data)
	r.drain(now)
}

// AddChannel declares channel as locally hosted: the Router will
// advertise it to every neighbor with the fixed local-origin metric.
func (r *Runner) AddChannel(channel ring.ChannelId) {
	r.router.AddLocalChannel(channel)
}

// RemoveChannel withdraws local hosting of channel.
func (r *Runner) RemoveChannel(channel ring.ChannelId) {
	r.router.RemoveLocalChannel(channel)
}

// JoinRing starts ring membership via a bootstrap node already on the
// ring, reached over bootstrapConn.
func (r *Runner) JoinRing(now int64, bootstrapConn ring.Connection, bootstrapId ring.NodeId) {
	r.chord.Join(now, bootstrapConn, bootstrapId)
	r.drain(now)
}
