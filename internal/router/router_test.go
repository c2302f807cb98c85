package router

import (
	"sort"
	"testing"

	"gotest.tools/v3/assert"

	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/wire"
)

func connTo(id ring.NodeId, session uint64) ring.Connection {
	return ring.Connection{Remote: id, Session: session}
}

// Recv learns routes the way a distance-vector protocol does: any
// channel a neighbor advertises becomes known, with no separate opt-in
// step required first.
func TestRecvAutoLearnsAdvertisedChannel(t *testing.T) {
	r := New()
	conn := connTo(1, 1)
	r.ConnectionStats(conn, ConnectionStats{RTTMs: 5})

	r.Recv(0, conn, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 99, RTT: 10}}})

	hop := r.NextHopFor(99)
	if hop.Kind != HopConnection || hop.Conn != conn {
		t.Fatalf("NextHopFor(99) = %+v, want connection %v", hop, conn)
	}
}

// The one row Recv does reject: a channel this node hosts itself. A
// remote path to a self-originated channel is nonsensical.
func TestRecvDropsRowForLocallyHostedChannel(t *testing.T) {
	r := New()
	conn := connTo(1, 1)
	r.ConnectionStats(conn, ConnectionStats{})
	r.AddLocalChannel(9)

	r.Recv(0, conn, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 9, RTT: 10}}})

	if _, ok := r.remoteChannels[9]; ok {
		t.Fatal("a row for a locally hosted channel must not enter remote_channels")
	}
}

func TestRecvBuildsPathWithComposedMetricAndAppendedHop(t *testing.T) {
	r := New()
	conn := connTo(1, 1)
	r.ConnectionStats(conn, ConnectionStats{RTTMs: 7, JitterMs: 2, BandwidthKbps: 1000})

	r.Recv(100, conn, wire.RouterSync{Rows: []wire.RouterRow{
		{Channel: 5, RTT: 10, Jitter: 1, Bandwidth: 5000, Hops: []ring.NodeId{3}},
	}})

	hop := r.NextHopFor(5)
	if hop.Kind != HopConnection || hop.Conn != conn {
		t.Fatalf("NextHopFor(5) = %+v, want connection %v", hop, conn)
	}

	route := r.remoteChannels[5]
	path := route.Paths[conn]
	if path.Metric.RTT != 17 {
		t.Errorf("composed RTT = %d, want 17 (10+7)", path.Metric.RTT)
	}
	if path.Metric.Bandwidth != 1000 {
		t.Errorf("composed Bandwidth = %d, want min(5000,1000)=1000", path.Metric.Bandwidth)
	}
	if len(path.Hops) != 2 || path.Hops[0] != 3 || path.Hops[1] != 1 {
		t.Errorf("hops = %v, want [3 1] (1 is conn.Remote appended)", path.Hops)
	}
}

// Invariant: split horizon. A path is never re-advertised back toward
// a connection whose remote node already appears in that path's hops.
func TestCreateSyncAppliesSplitHorizon(t *testing.T) {
	r := New()
	upstream := connTo(2, 1) // learned the path from node 2
	downstream := connTo(7, 2)
	r.ConnectionStats(upstream, ConnectionStats{})
	r.ConnectionStats(downstream, ConnectionStats{})

	// Path to channel 5 arrived via `upstream`, with hops = [2] after
	// composition (node 2 is on the path).
	r.Recv(0, upstream, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 5, RTT: 10}}})

	r.CreateSync(0)

	var sawUpstreamRow, sawDownstreamRow bool
	for {
		a, ok := r.PopAction()
		if !ok {
			break
		}
		sync := a.Msg.(wire.RouterSync)
		for _, row := range sync.Rows {
			if row.Channel != 5 {
				continue
			}
			if a.Conn == upstream {
				sawUpstreamRow = true
			}
			if a.Conn == downstream {
				sawDownstreamRow = true
			}
		}
	}
	if sawUpstreamRow {
		t.Error("channel 5's only path passes through node 2; must not be re-advertised back to it")
	}
	if !sawDownstreamRow {
		t.Error("channel 5's path should be advertised to downstream, which isn't on its hop list")
	}
}

func TestCreateSyncAdvertisesLocalChannelWithFixedMetric(t *testing.T) {
	r := New()
	conn := connTo(1, 1)
	r.ConnectionStats(conn, ConnectionStats{})
	r.AddLocalChannel(9)

	r.CreateSync(0)

	a, ok := r.PopAction()
	if !ok {
		t.Fatal("expected one sync action")
	}
	sync := a.Msg.(wire.RouterSync)
	if len(sync.Rows) != 1 {
		t.Fatalf("rows = %v, want 1", sync.Rows)
	}
	row := sync.Rows[0]
	if row.Channel != 9 || row.Bandwidth != localOriginBandwidth || row.RTT != 0 || len(row.Hops) != 0 {
		t.Errorf("local channel row = %+v, want fixed-metric origin row", row)
	}
}

// A channel both hosted locally and reachable remotely is only ever
// advertised as the local row, never the (shorter/worse) remote one.
func TestCreateSyncPrefersLocalOverRemoteForSameChannel(t *testing.T) {
	r := New()
	conn := connTo(1, 1)
	other := connTo(2, 1)
	r.ConnectionStats(conn, ConnectionStats{})
	r.ConnectionStats(other, ConnectionStats{})
	r.AddLocalChannel(9)
	// A row for a locally hosted channel is dropped, so this never
	// actually enters remote_channels; CreateSync still must only ever
	// emit the local-origin row for it.
	r.Recv(0, other, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 9, RTT: 5}}})

	r.CreateSync(0)

	for {
		a, ok := r.PopAction()
		if !ok {
			break
		}
		sync := a.Msg.(wire.RouterSync)
		count := 0
		for _, row := range sync.Rows {
			if row.Channel == 9 {
				count++
				if row.Bandwidth != localOriginBandwidth {
					t.Errorf("channel 9 row on conn %v should use the local-origin row, got %+v", a.Conn, row)
				}
			}
		}
		if count > 1 {
			t.Errorf("channel 9 advertised more than once on a single sync to %v", a.Conn)
		}
	}
}

// Scenario S6: two paths exist to a channel; the lower-rtt one is
// preferred, and a subsequent re-sync with a worse path flips the
// selection to the other neighbor.
func TestNextHopForPrefersLowerScore(t *testing.T) {
	r := New()
	n1 := connTo(1, 1)
	n2 := connTo(2, 1)
	r.ConnectionStats(n1, ConnectionStats{})
	r.ConnectionStats(n2, ConnectionStats{})

	r.Recv(0, n1, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 5, RTT: 50}}})
	r.Recv(0, n2, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 5, RTT: 200}}})

	hop := r.NextHopFor(5)
	if hop.Kind != HopConnection || hop.Conn != n1 {
		t.Fatalf("NextHopFor(5) = %+v, want the lower-rtt connection %v", hop, n1)
	}

	// N1's path degrades past N2's; the best hop should flip.
	r.Recv(0, n1, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 5, RTT: 300}}})
	hop = r.NextHopFor(5)
	if hop.Kind != HopConnection || hop.Conn != n2 {
		t.Fatalf("after reselection, NextHopFor(5) = %+v, want %v", hop, n2)
	}
}

func TestNextHopForLocalChannel(t *testing.T) {
	r := New()
	r.AddLocalChannel(3)
	if hop := r.NextHopFor(3); hop.Kind != HopLocal {
		t.Fatalf("NextHopFor(3) = %+v, want HopLocal", hop)
	}
}

func TestNextHopForUnknownChannel(t *testing.T) {
	r := New()
	if hop := r.NextHopFor(123); hop.Kind != HopNone {
		t.Fatalf("NextHopFor(123) = %+v, want HopNone", hop)
	}
}

// Invariant: disconnection purges conns and every path learned over
// that connection, across every channel.
func TestConnectionDisconnectedPurgesPaths(t *testing.T) {
	r := New()
	conn := connTo(1, 1)
	r.ConnectionStats(conn, ConnectionStats{})
	r.Recv(0, conn, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 5, RTT: 1}, {Channel: 6, RTT: 1}}})

	r.ConnectionDisconnected(conn)

	if hop := r.NextHopFor(5); hop.Kind != HopNone {
		t.Errorf("channel 5 should have no route after disconnect, got %+v", hop)
	}
	if hop := r.NextHopFor(6); hop.Kind != HopNone {
		t.Errorf("channel 6 should have no route after disconnect, got %+v", hop)
	}
	r.CreateSync(0)
	if _, ok := r.PopAction(); ok {
		t.Error("no sync should be generated for a connection no longer known")
	}
}

func sortedChannels(chs []ring.ChannelId) []ring.ChannelId {
	sort.Slice(chs, func(i, j int) bool { return chs[i] < chs[j] })
	return chs
}

// Invariant: LocalChannels/RemoteChannels reflect hosted channels and
// learned routes respectively, with a channel never appearing in both
// once it becomes locally hosted.
func TestLocalAndRemoteChannelsReflectState(t *testing.T) {
	r := New()
	r.AddLocalChannel(1)
	r.AddLocalChannel(2)
	conn := connTo(9, 1)
	r.ConnectionStats(conn, ConnectionStats{})
	r.Recv(0, conn, wire.RouterSync{Rows: []wire.RouterRow{{Channel: 2, RTT: 1}, {Channel: 3, RTT: 1}}})

	assert.DeepEqual(t, sortedChannels(r.LocalChannels()), []ring.ChannelId{1, 2})
	assert.DeepEqual(t, sortedChannels(r.RemoteChannels()), []ring.ChannelId{3})
}
