package router

import "p2pstreamd/internal/ring"

// ChannelRoute is everything this node knows about reaching one remote
// channel: one candidate ChannelPath per neighbor connection that has
// advertised it.
type ChannelRoute struct {
	Paths map[ring.Connection]ChannelPath
}

func newChannelRoute() *ChannelRoute {
	return &ChannelRoute{Paths: make(map[ring.Connection]ChannelPath)}
}

// best returns the connection with the lowest-scoring path, or the
// zero Connection and false if the route has no paths at all. Ties
// keep whichever connection sorts first by the map's iteration — the
// spec only requires that ties keep "the incumbent", which in this
// single-pass scan means the first-seen path of equal score is never
// displaced by a later one.
func (r *ChannelRoute) best() (ring.Connection, ChannelPath, bool) {
	var (
		bestConn  ring.Connection
		bestPath  ChannelPath
		found     bool
		bestScore uint32
	)
	for conn, path := range r.Paths {
		if !found || path.Metric.Score() < bestScore {
			bestConn, bestPath, bestScore, found = conn, path, path.Metric.Score(), true
		}
	}
	return bestConn, bestPath, found
}

// bestExcludingHop returns the lowest-scoring path whose hop set does
// not already include avoid, the split-horizon rule applied when
// deciding what to re-advertise toward a given neighbor.
func (r *ChannelRoute) bestExcludingHop(avoid ring.NodeId) (ChannelPath, bool) {
	var (
		bestPath  ChannelPath
		found     bool
		bestScore uint32
	)
	for _, path := range r.Paths {
		if path.hasHop(avoid) {
			continue
		}
		if !found || path.Metric.Score() < bestScore {
			bestPath, bestScore, found = path, path.Metric.Score(), true
		}
	}
	return bestPath, found
}

func (r *ChannelRoute) isEmpty() bool { return len(r.Paths) == 0 }
