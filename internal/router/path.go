package router

import (
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/wire"
)

// ChannelPath is one candidate route to a channel, as advertised by a
// single neighbor connection: the composed metric from here to the
// channel's origin, the ordered list of node ids the route has already
// passed through (for split-horizon), and when this path was last
// refreshed by an inbound RouterSync.
type ChannelPath struct {
	LastSync int64
	Metric   Metric
	Hops     []ring.NodeId
}

// FromRow reconstructs the path a neighbor advertised, before this
// node's own connection to that neighbor has been composed in. Callers
// compose in the local hop with AddLocal and append the connection's
// remote id to Hops themselves, since neither is known to the row
// alone.
func FromRow(now int64, row wire.RouterRow) ChannelPath {
	hops := make([]ring.NodeId, len(row.Hops))
	copy(hops, row.Hops)
	return ChannelPath{
		LastSync: now,
		Metric: Metric{
			RTT:       row.RTT,
			LossRaw:   PercentToRaw(row.Loss),
			Jitter:    row.Jitter,
			Bandwidth: row.Bandwidth,
		},
		Hops: hops,
	}
}

// ToRow serializes the path for re-advertisement to another neighbor.
// Bandwidth is deliberately zeroed here: a path hop count away from
// its origin no longer carries a meaningful end-to-end bandwidth
// figure once relayed, and the spec flags this as a known-lossy
// projection whose correctness is unconfirmed (see SPEC_FULL.md §6).
func (p ChannelPath) ToRow(channel ring.ChannelId) wire.RouterRow {
	hops := make([]ring.NodeId, len(p.Hops))
	copy(hops, p.Hops)
	return wire.RouterRow{
		Channel:   channel,
		Bandwidth: 0,
		RTT:       p.Metric.RTT,
		Loss:      RawToPercent(p.Metric.LossRaw),
		Jitter:    p.Metric.Jitter,
		Hops:      hops,
	}
}

// hasHop reports whether id already appears in the path's hop set,
// the split-horizon test used when deciding whether to re-advertise a
// path back toward one of the nodes it has already passed through.
func (p ChannelPath) hasHop(id ring.NodeId) bool {
	for _, h := range p.Hops {
		if h == id {
			return true
		}
	}
	return false
}
