// Package router maintains, for each channel this node knows about,
// the set of candidate paths advertised by neighbors, and picks a best
// next hop for forwarding. Like chord, it is single-threaded and
// I/O-free: the time-dependent methods take the caller's current time,
// no method blocks, and outbound RouterSync messages accumulate for
// PopAction.
package router

import "math"

// Metric is a composed path quality estimate. Loss is stored as a
// fixed-point scalar with two fractional decimal digits (a raw value
// of 150 means 1.50%); every other field is a plain integer in its
// natural unit.
type Metric struct {
	RTT       uint32 // ms
	LossRaw   uint32 // fixed-point, 2 decimals: percent * 100
	Jitter    uint32 // ms
	Bandwidth uint32 // kbps
}

// PercentToRaw converts a loss percentage to the fixed-point
// representation Metric stores, rounding to the nearest hundredth.
func PercentToRaw(percent float32) uint32 {
	return uint32(math.Round(float64(percent) * 100))
}

// RawToPercent converts a fixed-point loss value back to a percentage.
func RawToPercent(raw uint32) float32 {
	return float32(raw) / 100
}

// AddLocal composes an upstream metric with the stats of the local
// connection it arrived over, producing the metric as seen from this
// node: rtt and jitter add, bandwidth is bottlenecked to the minimum,
// and loss composes as independent-link probability
// (1 - (1-m)(1-s)), not a sum.
func (m Metric) AddLocal(s ConnectionStats) Metric {
	bw := s.BandwidthKbps
	if m.Bandwidth < bw {
		bw = m.Bandwidth
	}
	mLoss := RawToPercent(m.LossRaw) / 100
	sLoss := RawToPercent(s.LossPercentRaw) / 100
	composed := (1 - (1-mLoss)*(1-sLoss)) * 100
	return Metric{
		RTT:       m.RTT + s.RTTMs,
		LossRaw:   PercentToRaw(composed),
		Jitter:    m.Jitter + s.JitterMs,
		Bandwidth: bw,
	}
}

// Score is the value paths are ranked by: lower rtt wins, ties keep
// whichever path already held the slot (see ChannelRoute.best).
func (m Metric) Score() uint32 { return m.RTT }

// ConnectionStats is the host-supplied quality estimate for one
// connection, refreshed as the host's transport observes it.
type ConnectionStats struct {
	RTTMs          uint32
	LossPercentRaw uint32 // fixed-point, 2 decimals
	JitterMs       uint32
	BandwidthKbps  uint32
}
