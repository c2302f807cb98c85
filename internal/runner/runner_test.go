package runner

import (
	"testing"

	"p2pstreamd/internal/chord"
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/router"
	"p2pstreamd/internal/wire"
)

func routerSyncWithChannel(channel ring.ChannelId) wire.RouterSync {
	return wire.RouterSync{Rows: []wire.RouterRow{{Channel: channel, RTT: 10}}}
}

const (
	testRequestTimeoutMs    = 10000
	testPredecessorWarmupMs = 10000
	testPongTimeoutMs       = 10000
	testSubscribeLeaseMs    = 5000
)

func newTestRunner(id ring.NodeId) *Runner {
	return New(chord.NodeInfo{NodeId: id, Address: id.String()},
		testRequestTimeoutMs, testPredecessorWarmupMs, testPongTimeoutMs, testSubscribeLeaseMs)
}

// net wires a fixed set of point-to-point links between Runners under
// test and pumps OutputEvents to the peer named by each link until
// every Runner goes quiet, recording every ChannelData delivered to
// each Runner's own host along the way.
type net struct {
	t         *testing.T
	peer      map[ring.Connection]*Runner
	mirror    map[ring.Connection]ring.Connection
	delivered map[*Runner][]ChannelData
}

func newNet(t *testing.T) *net {
	return &net{
		t:         t,
		peer:      make(map[ring.Connection]*Runner),
		mirror:    make(map[ring.Connection]ring.Connection),
		delivered: make(map[*Runner][]ChannelData),
	}
}

// link registers a bidirectional edge: a's outbound Conn token connA
// reaches b, arriving there tagged with b's own token connB for the
// same edge, and vice versa.
func (n *net) link(a *Runner, connA ring.Connection, b *Runner, connB ring.Connection) {
	n.peer[connA] = b
	n.mirror[connA] = connB
	n.peer[connB] = a
	n.mirror[connB] = connA
}

func (n *net) pump(now int64, runners []*Runner) {
	n.t.Helper()
	for {
		progressed := false
		for _, r := range runners {
			for {
				o, ok := r.PopOutput()
				if !ok {
					break
				}
				progressed = true
				switch v := o.(type) {
				case Send:
					peer, ok := n.peer[v.Conn]
					if !ok {
						n.t.Fatalf("send on unknown connection %v", v.Conn)
					}
					peer.OnMsg(now, Recv{Conn: n.mirror[v.Conn], Msg: v.Msg})
				case Dial:
					n.t.Fatalf("unexpected Dial in a router/pubsub-only test: %+v", v)
				case ChannelData:
					n.delivered[r] = append(n.delivered[r], v)
				}
			}
		}
		if !progressed {
			return
		}
	}
}

// Scenario S4: nodes A, B, C connected linearly A-B-C. A hosts channel
// X; after a sync round B and C both learn a path to it via A. C
// subscribes; publishing at A must reach C but not B, since B never
// subscribed locally itself.
func TestChannelFanOutLinearTopology(t *testing.T) {
	a, b, c := newTestRunner(1), newTestRunner(2), newTestRunner(3)
	net := newNet(t)

	connAB := ring.Connection{Remote: 2, Session: 1}
	connBA := ring.Connection{Remote: 1, Session: 1}
	connBC := ring.Connection{Remote: 3, Session: 2}
	connCB := ring.Connection{Remote: 2, Session: 2}
	net.link(a, connAB, b, connBA)
	net.link(b, connBC, c, connCB)

	for _, e := range []struct {
		r    *Runner
		conn ring.Connection
	}{{a, connAB}, {b, connBA}, {b, connBC}, {c, connCB}} {
		e.r.OnMsg(0, Stats{Conn: e.conn, Stats: router.ConnectionStats{RTTMs: 10}})
	}

	const channelX ring.ChannelId = 42
	a.AddChannel(channelX)

	all := []*Runner{a, b, c}
	tickAndPump := func(now int64) {
		a.OnTick(now)
		b.OnTick(now)
		c.OnTick(now)
		net.pump(now, all)
	}

	// Round 1: A's local-origin row for X reaches B.
	tickAndPump(100)
	if hop := b.router.NextHopFor(channelX); hop.Kind != router.HopConnection || hop.Conn != connBA {
		t.Fatalf("B should have learned a path to X via A, got %+v", hop)
	}

	// C subscribes before it has any route to X yet; the resulting
	// SendSub is dropped (NextHopFor is still HopNone) and retried on
	// every later pubsub tick until a route exists.
	c.Subscribe(100, channelX)

	// Round 2: B, now knowing a path, relays a derived row to C.
	tickAndPump(200)
	if hop := c.router.NextHopFor(channelX); hop.Kind != router.HopConnection || hop.Conn != connCB {
		t.Fatalf("C should have learned a path to X via B, got %+v", hop)
	}

	// Round 3: C's pubsub tick retries SendSub, now resolving; the
	// resulting ChannelSub propagates C->B->A within this same round,
	// since each hop's routing table is already in place.
	tickAndPump(300)
	if _, pinned := c.remoteChannels[channelX]; !pinned {
		t.Fatal("C should have pinned a route after its Sub resolved")
	}

	a.Publish(300, channelX, []byte("hi"))
	net.pump(300, all)

	if len(net.delivered[c]) != 1 || string(net.delivered[c][0].Data) != "hi" {
		t.Fatalf("C's deliveries = %v, want one OnChannelData(hi)", net.delivered[c])
	}
	if len(net.delivered[b]) != 0 {
		t.Fatalf("B never subscribed locally and must not receive OnChannelData, got %v", net.delivered[b])
	}
	if len(net.delivered[a]) != 0 {
		t.Fatalf("A never subscribed locally and must not receive OnChannelData, got %v", net.delivered[a])
	}
}

// Scenario S5: with the S4 setup in steady state, C stops ticking. B's
// remote_subs lease on C's connection expires, B emits Unsub upstream
// to A, and a subsequent publish no longer reaches C.
func TestSubscriptionExpiryStopsDownstreamDelivery(t *testing.T) {
	a, b, c := newTestRunner(1), newTestRunner(2), newTestRunner(3)
	net := newNet(t)

	connAB := ring.Connection{Remote: 2, Session: 1}
	connBA := ring.Connection{Remote: 1, Session: 1}
	connBC := ring.Connection{Remote: 3, Session: 2}
	connCB := ring.Connection{Remote: 2, Session: 2}
	net.link(a, connAB, b, connBA)
	net.link(b, connBC, c, connCB)
	for _, e := range []struct {
		r    *Runner
		conn ring.Connection
	}{{a, connAB}, {b, connBA}, {b, connBC}, {c, connCB}} {
		e.r.OnMsg(0, Stats{Conn: e.conn, Stats: router.ConnectionStats{RTTMs: 10}})
	}

	const channelX ring.ChannelId = 42
	a.AddChannel(channelX)
	all := []*Runner{a, b, c}
	tickAndPump := func(now int64) {
		a.OnTick(now)
		b.OnTick(now)
		c.OnTick(now)
		net.pump(now, all)
	}

	// Three rounds to let the two-hop route and then the subscription
	// itself fully propagate A<-B<-C before C goes quiet (see
	// TestChannelFanOutLinearTopology for why three rounds are needed).
	tickAndPump(100)
	c.Subscribe(100, channelX)
	tickAndPump(200)
	tickAndPump(300)

	// C stops ticking entirely (simulated host stall). A and B keep
	// ticking; B's subscription-lease tick eventually drops C.
	now := int64(300)
	for i := 0; i < 60; i++ { // 60 * 100ms ticks = 6s of B's clock
		now += 100
		a.OnTick(now)
		b.OnTick(now)
		net.pump(now, []*Runner{a, b})
	}

	if b.pubsub.HasInterest(channelX) {
		t.Fatal("B's remote sub from C should have expired and torn the channel down")
	}

	a.Publish(now, channelX, []byte("too late"))
	net.pump(now, []*Runner{a, b})

	if len(net.delivered[c]) != 0 {
		t.Fatalf("C stopped ticking and its subscription lapsed; it must not receive %v", net.delivered[c])
	}
}

func TestJoinRingEmitsFindSuccessorThroughChord(t *testing.T) {
	b := newTestRunner(20)
	connAB := ring.Connection{Remote: 20, Session: 1}

	b.JoinRing(0, connAB, 10)

	out, ok := b.PopOutput()
	if !ok {
		t.Fatal("expected JoinRing to emit a Send(FindSuccessor)")
	}
	send, ok := out.(Send)
	if !ok {
		t.Fatalf("output = %T, want Send", out)
	}
	if send.Conn != connAB {
		t.Fatalf("send.Conn = %v, want %v", send.Conn, connAB)
	}
	if _, ok := send.Msg.(wire.FindSuccessor); !ok {
		t.Fatalf("send.Msg = %T, want wire.FindSuccessor", send.Msg)
	}
}

func TestDisconnectedUnpinsRemoteChannel(t *testing.T) {
	a := newTestRunner(1)
	conn := ring.Connection{Remote: 2, Session: 1}
	a.OnMsg(0, Stats{Conn: conn, Stats: router.ConnectionStats{RTTMs: 5}})
	a.OnMsg(0, Recv{Conn: conn, Msg: routerSyncWithChannel(7)})

	a.Subscribe(0, 7)
	if _, ok := a.remoteChannels[7]; !ok {
		t.Fatal("subscribe should have pinned a route for channel 7")
	}

	a.OnMsg(0, Disconnected{Conn: conn})
	if _, ok := a.remoteChannels[7]; ok {
		t.Fatal("disconnecting the pinned connection should unpin the channel")
	}
}
