package mailbox

import (
	"context"
	"net"
	"testing"
	"time"

	"p2pstreamd/internal/chord"
	"p2pstreamd/internal/ring"
)

func newTestMailbox(t *testing.T, id ring.NodeId) *Mailbox {
	t.Helper()
	// Reserve a free port first: Chord hands this node's own address to
	// peers, which dial it back during stabilization.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := probe.Addr().String()
	probe.Close()
	mb := New(chord.NodeInfo{NodeId: id, Address: addr}, 10*time.Millisecond, 10000, 10000, 10000, 5000)
	if err := mb.Listen(addr); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	return mb
}

func runMailbox(t *testing.T, mb *Mailbox) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go mb.Run(ctx)
	t.Cleanup(cancel)
	return cancel
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// Two nodes reach mutual successor/predecessor over real TCP sockets,
// driven entirely through the public Mailbox surface: Listen, Run, and
// JoinRing. This exercises the whole host-facing transport (accept,
// identify, dial, encode/decode) the core itself never touches.
func TestTwoMailboxesConvergeOverTCP(t *testing.T) {
	a := newTestMailbox(t, 0)
	b := newTestMailbox(t, 1000)
	runMailbox(t, a)
	runMailbox(t, b)

	if err := b.JoinRing(a.address, 0); err != nil {
		t.Fatalf("JoinRing: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		sb := b.Status()
		sa := a.Status()
		return sb.Successor != nil && *sb.Successor == 0 &&
			sa.Predecessor != nil && *sa.Predecessor == 1000
	})
}

// Channel advertisements cross a real socket: a hosts a channel, b
// joins through a, and a's RouterSync teaches b a route to the channel,
// observed in b's Status as a remote channel. No subscribe or publish
// happens here.
func TestChannelRoutePropagatesOverTCP(t *testing.T) {
	a := newTestMailbox(t, 0)
	b := newTestMailbox(t, 1000)
	runMailbox(t, a)
	runMailbox(t, b)

	a.AddChannel(42)
	if err := b.JoinRing(a.address, 0); err != nil {
		t.Fatalf("JoinRing: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		for _, ch := range b.Status().RemoteChannels {
			if ch == 42 {
				return true
			}
		}
		return false
	})
}

func TestStatusReportsAddressAndSelf(t *testing.T) {
	a := newTestMailbox(t, 7)
	runMailbox(t, a)

	st := a.Status()
	if st.Self != 7 {
		t.Fatalf("Self = %v, want 7", st.Self)
	}
	if st.Address == "" {
		t.Fatal("Address should be populated after Listen")
	}
}
