package router

import (
	"p2pstreamd/internal/logger"
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/wire"
)

// localOriginBandwidth is advertised for channels this node hosts
// itself: an arbitrarily large figure meant to never be the bottleneck
// in a min() composition, standing in for "local, no transport limit".
const localOriginBandwidth = 10_000_000

// Option configures a Router at construction time.
type Option func(*Router)

// WithLogger attaches a structured logger. The zero value logs nothing.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// Action is an outbound RouterSync this package wants delivered over
// Conn. Unlike chord.Action, there is no address fallback: the router
// only ever talks to connections it already has stats for.
type Action struct {
	Conn ring.Connection
	Msg  wire.Message
}

// HopKind classifies the answer to NextHopFor.
type HopKind int

const (
	// HopNone means no route to the channel is currently known.
	HopNone HopKind = iota
	// HopLocal means the channel is hosted by this node.
	HopLocal
	// HopConnection means Conn is the best next hop.
	HopConnection
)

// Hop is the result of a next-hop lookup.
type Hop struct {
	Kind HopKind
	Conn ring.Connection
}

// Router tracks, for each channel of interest, the candidate paths
// advertised by neighbors, and periodically advertises this node's own
// best paths back out. It is single-threaded and I/O-free: the methods
// that depend on time (Recv, CreateSync) take the caller's current
// time, no method blocks, and outbound actions accumulate for PopAction.
type Router struct {
	logger logger.Logger

	conns          map[ring.Connection]ConnectionStats
	localChannels  map[ring.ChannelId]struct{}
	remoteChannels map[ring.ChannelId]*ChannelRoute

	actions []Action
}

// New builds an empty Router.
func New(opts ...Option) *Router {
	r := &Router{
		logger:         &logger.NopLogger{},
		conns:          make(map[ring.Connection]ConnectionStats),
		localChannels:  make(map[ring.ChannelId]struct{}),
		remoteChannels: make(map[ring.ChannelId]*ChannelRoute),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PopAction removes and returns the oldest pending outbound action.
func (r *Router) PopAction() (Action, bool) {
	if len(r.actions) == 0 {
		return Action{}, false
	}
	a := r.actions[0]
	r.actions = r.actions[1:]
	return a, true
}

// AddLocalChannel marks channel as hosted by this node: it will be
// advertised to every neighbor with the fixed local-origin metric
// instead of being resolved from remote paths.
func (r *Router) AddLocalChannel(channel ring.ChannelId) {
	r.localChannels[channel] = struct{}{}
}

// RemoveLocalChannel withdraws local hosting of channel. Any remote
// paths previously learned for it (e.g. if this node was also relaying
// it) are left untouched.
func (r *Router) RemoveLocalChannel(channel ring.ChannelId) {
	delete(r.localChannels, channel)
}

// ConnectionStats upserts the host's latest quality estimate for conn,
// registering it as a known connection if this is the first report.
func (r *Router) ConnectionStats(conn ring.Connection, stats ConnectionStats) {
	r.conns[conn] = stats
}

// ConnectionDisconnected purges conn and every path learned over it,
// across every channel. Paths are soft state: disconnection drops them
// immediately rather than waiting for them to age out.
func (r *Router) ConnectionDisconnected(conn ring.Connection) {
	delete(r.conns, conn)
	for _, route := range r.remoteChannels {
		delete(route.Paths, conn)
	}
}

// Recv applies one inbound RouterSync received over conn. A channel is
// "known" the moment any neighbor advertises it — Router learns routes
// the way a distance-vector protocol does, with no separate opt-in
// step — except for a channel this node hosts itself: a remote path to
// a channel we originate is nonsensical, so that row is logged and
// dropped instead of admitted into remote_channels.
func (r *Router) Recv(now int64, conn ring.Connection, sync wire.RouterSync) {
	stats := r.conns[conn]
	for _, row := range sync.Rows {
		if _, hosted := r.localChannels[row.Channel]; hosted {
			r.logger.Warn("RouterSync row for a channel this node hosts locally",
				logger.F("channel", row.Channel.String()),
				logger.F("from", conn.String()))
			continue
		}
		route, ok := r.remoteChannels[row.Channel]
		if !ok {
			route = newChannelRoute()
			r.remoteChannels[row.Channel] = route
		}
		path := FromRow(now, row)
		path.Metric = path.Metric.AddLocal(stats)
		path.Hops = append(path.Hops, conn.Remote)
		route.Paths[conn] = path
	}
}

// CreateSync builds one outbound RouterSync per known connection: a
// fixed-metric row for every locally hosted channel, plus the best
// split-horizon path for every tracked remote channel not also hosted
// locally.
func (r *Router) CreateSync(now int64) {
	for conn := range r.conns {
		var rows []wire.RouterRow
		for channel := range r.localChannels {
			rows = append(rows, wire.RouterRow{
				Channel:   channel,
				Bandwidth: localOriginBandwidth,
			})
		}
		for channel, route := range r.remoteChannels {
			if _, hosted := r.localChannels[channel]; hosted {
				continue
			}
			path, ok := route.bestExcludingHop(conn.Remote)
			if !ok {
				continue
			}
			rows = append(rows, path.ToRow(channel))
		}
		r.actions = append(r.actions, Action{Conn: conn, Msg: wire.RouterSync{Rows: rows}})
	}
}

// LocalChannels returns every channel this node hosts, for status and
// shell introspection; order is unspecified.
func (r *Router) LocalChannels() []ring.ChannelId {
	out := make([]ring.ChannelId, 0, len(r.localChannels))
	for ch := range r.localChannels {
		out = append(out, ch)
	}
	return out
}

// RemoteChannels returns every channel this node has learned at least
// one path to from a neighbor, for status and shell introspection.
func (r *Router) RemoteChannels() []ring.ChannelId {
	out := make([]ring.ChannelId, 0, len(r.remoteChannels))
	for ch := range r.remoteChannels {
		out = append(out, ch)
	}
	return out
}

// NextHopFor answers where traffic for channel should go next: Local
// if this node hosts it, the best-scoring known path's connection if
// any exist, or HopNone if nothing is known about the channel at all.
func (r *Router) NextHopFor(channel ring.ChannelId) Hop {
	if _, ok := r.localChannels[channel]; ok {
		return Hop{Kind: HopLocal}
	}
	route, ok := r.remoteChannels[channel]
	if !ok || route.isEmpty() {
		return Hop{Kind: HopNone}
	}
	conn, _, found := route.best()
	if !found {
		return Hop{Kind: HopNone}
	}
	return Hop{Kind: HopConnection, Conn: conn}
}
