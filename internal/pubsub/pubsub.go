// Package pubsub tracks local and remote subscription interest per
// channel and fans out published data to every interested party. Like
// chord and router, it is single-threaded and I/O-free: it has no
// notion of which connection is "upstream" for a channel — that
// resolution is the Runner's job — and communicates only through the
// abstract Output events drained by PopOutput.
package pubsub

import (
	"p2pstreamd/internal/logger"
	"p2pstreamd/internal/ring"
)

// Option configures a Pubsub at construction time.
type Option func(*Pubsub)

// WithLogger attaches a structured logger. The zero value logs nothing.
func WithLogger(l logger.Logger) Option {
	return func(p *Pubsub) { p.logger = l }
}

// Pubsub multiplexes per-channel subscription state. Channels are
// created on first interest and destroyed the instant a transition
// leaves them with neither a local subscriber nor any remote one.
type Pubsub struct {
	logger  logger.Logger
	leaseMs int64

	channels map[ring.ChannelId]*channel
	outputs  []Output
}

// New builds an empty Pubsub. leaseMs is how long a remote
// subscription survives without a refreshing ChannelSub.
func New(leaseMs int64, opts ...Option) *Pubsub {
	p := &Pubsub{
		logger:   &logger.NopLogger{},
		leaseMs:  leaseMs,
		channels: make(map[ring.ChannelId]*channel),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PopOutput removes and returns the oldest pending output event.
func (p *Pubsub) PopOutput() (Output, bool) {
	if len(p.outputs) == 0 {
		return nil, false
	}
	o := p.outputs[0]
	p.outputs = p.outputs[1:]
	return o, true
}

func (p *Pubsub) emit(o Output) { p.outputs = append(p.outputs, o) }

func (p *Pubsub) getOrCreate(id ring.ChannelId) *channel {
	ch, ok := p.channels[id]
	if !ok {
		ch = newChannel()
		p.channels[id] = ch
	}
	return ch
}

// HasInterest reports whether channel id currently has any recorded
// interest at all, local or remote.
func (p *Pubsub) HasInterest(id ring.ChannelId) bool {
	_, ok := p.channels[id]
	return ok
}

func (p *Pubsub) destroyIfEmpty(id ring.ChannelId, ch *channel) {
	if ch.isEmpty() {
		delete(p.channels, id)
	}
}

// SubChannel records the host's own interest in channel id.
func (p *Pubsub) SubChannel(id ring.ChannelId) {
	ch := p.getOrCreate(id)
	if ch.setLocalSub() {
		p.emit(SendSub{Channel: id})
	}
}

// UnsubChannel withdraws the host's own interest in channel id.
func (p *Pubsub) UnsubChannel(id ring.ChannelId) {
	ch, ok := p.channels[id]
	if !ok {
		return
	}
	if ch.clearLocalSub() {
		p.emit(SendUnsub{Channel: id})
	}
	p.destroyIfEmpty(id, ch)
}

// PubChannel relays data published locally to id's current
// subscribers. A channel nobody has ever expressed interest in has
// nothing to relay to and is left uncreated.
func (p *Pubsub) PubChannel(id ring.ChannelId, data []byte) {
	ch, ok := p.channels[id]
	if !ok {
		return
	}
	p.relayData(id, ch, data)
}

func (p *Pubsub) relayData(id ring.ChannelId, ch *channel, data []byte) {
	conns := ch.connections()
	if !ch.localSub && len(conns) == 0 {
		return
	}
	for _, conn := range conns {
		p.emit(SendData{Conn: conn, Channel: id, Data: data})
	}
	if ch.localSub {
		p.emit(OnChannelData{Channel: id, Data: data})
	}
}

// OnTick advances every channel's soft state: expired remote
// subscriptions are dropped; a channel that transitions to empty as a
// result is destroyed and, matching the explicit local/remote unsub
// paths, emits a SendUnsub (Invariant: a SendUnsub is emitted iff a
// non-empty state transitioned to empty). A channel still non-empty
// has its upstream Sub refreshed so the lease this node itself holds
// on its own upstream does not lapse.
func (p *Pubsub) OnTick(now int64) {
	for id, ch := range p.channels {
		wasEmpty := ch.isEmpty()
		ch.tick(now, p.leaseMs)
		if ch.isEmpty() {
			delete(p.channels, id)
			if !wasEmpty {
				p.emit(SendUnsub{Channel: id})
			}
			continue
		}
		p.emit(SendSub{Channel: id})
	}
}

// OnRemoteSub records a ChannelSub received over conn.
func (p *Pubsub) OnRemoteSub(now int64, conn ring.Connection, id ring.ChannelId) {
	ch := p.getOrCreate(id)
	if ch.remoteSub(conn, now) {
		p.emit(SendSub{Channel: id})
	}
}

// OnRemoteUnsub records a ChannelUnsub received over conn.
func (p *Pubsub) OnRemoteUnsub(conn ring.Connection, id ring.ChannelId) {
	ch, ok := p.channels[id]
	if !ok {
		return
	}
	if ch.remoteUnsub(conn) {
		p.emit(SendUnsub{Channel: id})
	}
	p.destroyIfEmpty(id, ch)
}

// OnRemoteData relays inbound ChannelData to this channel's current
// interest set. Data for a channel this node has no recorded interest
// in is dropped and logged: it is not, or is no longer, party to it.
func (p *Pubsub) OnRemoteData(id ring.ChannelId, data []byte) {
	ch, ok := p.channels[id]
	if !ok {
		p.logger.Warn("ChannelData for channel with no recorded interest", logger.F("channel", id.String()))
		return
	}
	p.relayData(id, ch, data)
}
