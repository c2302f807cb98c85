package pubsub

import (
	"testing"

	"p2pstreamd/internal/ring"
)

const testLeaseMs = 5000

func conn(id ring.NodeId) ring.Connection { return ring.Connection{Remote: id, Session: 1} }

func popAll(p *Pubsub) []Output {
	var outs []Output
	for {
		o, ok := p.PopOutput()
		if !ok {
			return outs
		}
		outs = append(outs, o)
	}
}

func TestFirstLocalSubEmitsSendSub(t *testing.T) {
	p := New(testLeaseMs)
	p.SubChannel(1)
	outs := popAll(p)
	if len(outs) != 1 {
		t.Fatalf("outputs = %v, want exactly one SendSub", outs)
	}
	if _, ok := outs[0].(SendSub); !ok {
		t.Fatalf("output = %T, want SendSub", outs[0])
	}
}

func TestRepeatedLocalSubIsIdempotent(t *testing.T) {
	p := New(testLeaseMs)
	p.SubChannel(1)
	popAll(p)
	p.SubChannel(1)
	if outs := popAll(p); len(outs) != 0 {
		t.Fatalf("repeated SubChannel emitted %v, want nothing", outs)
	}
}

func TestFirstRemoteSubWithNoLocalEmitsSendSub(t *testing.T) {
	p := New(testLeaseMs)
	p.OnRemoteSub(0, conn(5), 1)
	outs := popAll(p)
	if len(outs) != 1 {
		t.Fatalf("outputs = %v, want one SendSub", outs)
	}
	if _, ok := outs[0].(SendSub); !ok {
		t.Fatalf("output = %T, want SendSub", outs[0])
	}
}

func TestRemoteSubWhileLocalAlreadySubscribedEmitsNothing(t *testing.T) {
	p := New(testLeaseMs)
	p.SubChannel(1)
	popAll(p)
	p.OnRemoteSub(0, conn(5), 1)
	if outs := popAll(p); len(outs) != 0 {
		t.Fatalf("remote sub joining an already-subscribed channel emitted %v, want nothing", outs)
	}
}

func TestSecondRemoteSubEmitsNothing(t *testing.T) {
	p := New(testLeaseMs)
	p.OnRemoteSub(0, conn(5), 1)
	popAll(p)
	p.OnRemoteSub(0, conn(6), 1)
	if outs := popAll(p); len(outs) != 0 {
		t.Fatalf("second remote sub emitted %v, want nothing", outs)
	}
}

func TestLocalUnsubLeavingNoRemotesEmitsSendUnsub(t *testing.T) {
	p := New(testLeaseMs)
	p.SubChannel(1)
	popAll(p)
	p.UnsubChannel(1)
	outs := popAll(p)
	if len(outs) != 1 {
		t.Fatalf("outputs = %v, want one SendUnsub", outs)
	}
	if _, ok := outs[0].(SendUnsub); !ok {
		t.Fatalf("output = %T, want SendUnsub", outs[0])
	}
	if _, stillTracked := p.channels[1]; stillTracked {
		t.Fatal("channel should be destroyed once empty")
	}
}

func TestLocalUnsubWithRemainingRemoteEmitsNothing(t *testing.T) {
	p := New(testLeaseMs)
	p.SubChannel(1)
	p.OnRemoteSub(0, conn(5), 1)
	popAll(p)
	p.UnsubChannel(1)
	if outs := popAll(p); len(outs) != 0 {
		t.Fatalf("local unsub with a remote still present emitted %v, want nothing", outs)
	}
	if _, ok := p.channels[1]; !ok {
		t.Fatal("channel with a remaining remote subscriber should not be destroyed")
	}
}

func TestRemoteUnsubEmptyingWithNoLocalEmitsSendUnsub(t *testing.T) {
	p := New(testLeaseMs)
	p.OnRemoteSub(0, conn(5), 1)
	popAll(p)
	p.OnRemoteUnsub(conn(5), 1)
	outs := popAll(p)
	if len(outs) != 1 {
		t.Fatalf("outputs = %v, want one SendUnsub", outs)
	}
	if _, ok := outs[0].(SendUnsub); !ok {
		t.Fatalf("output = %T, want SendUnsub", outs[0])
	}
}

// Invariant: is_empty is AND, not OR — a channel with a live remote
// subscriber is never torn down just because the local host isn't
// also subscribed.
func TestChannelSurvivesWithOnlyRemoteInterest(t *testing.T) {
	p := New(testLeaseMs)
	p.OnRemoteSub(0, conn(5), 1)
	popAll(p)
	p.OnTick(100)
	if _, ok := p.channels[1]; !ok {
		t.Fatal("channel with only remote interest must survive a tick well within its lease")
	}
}

func TestTickDropsExpiredRemoteSubAndRefreshesSurvivingInterest(t *testing.T) {
	p := New(testLeaseMs)
	p.SubChannel(1)
	p.OnRemoteSub(0, conn(5), 1)
	popAll(p)

	p.OnTick(testLeaseMs + 1)
	outs := popAll(p)

	if len(p.channels[1].remoteSubs) != 0 {
		t.Fatal("expired remote sub should have been dropped")
	}
	if len(outs) != 1 {
		t.Fatalf("outputs = %v, want one refresh SendSub (local interest still present)", outs)
	}
	if _, ok := outs[0].(SendSub); !ok {
		t.Fatalf("output = %T, want SendSub", outs[0])
	}
}

// Invariant 5: a SendUnsub is emitted iff the preceding non-empty state
// transitioned to empty — including when the transition happens inside
// OnTick as a lease expiring, not just on an explicit local/remote
// unsub call.
func TestTickDestroysChannelThatExpiresToEmptyAndEmitsSendUnsub(t *testing.T) {
	p := New(testLeaseMs)
	p.OnRemoteSub(0, conn(5), 1)
	popAll(p)

	p.OnTick(testLeaseMs + 1)
	outs := popAll(p)

	if _, ok := p.channels[1]; ok {
		t.Fatal("channel with no surviving interest after tick should be destroyed")
	}
	if len(outs) != 1 {
		t.Fatalf("outputs = %v, want exactly one SendUnsub", outs)
	}
	if _, ok := outs[0].(SendUnsub); !ok {
		t.Fatalf("output = %T, want SendUnsub", outs[0])
	}
}

func TestTickRefreshesBeforeLeaseExpires(t *testing.T) {
	p := New(testLeaseMs)
	p.OnRemoteSub(0, conn(5), 1)
	popAll(p)

	p.OnRemoteSub(1000, conn(5), 1) // refresh well before the 5s lease
	popAll(p)

	p.OnTick(testLeaseMs + 500) // would have expired an un-refreshed sub from t=0
	if _, ok := p.channels[1]; !ok {
		t.Fatal("refreshed remote sub should survive past the original lease window")
	}
}

func TestPubChannelRelaysToLocalAndRemote(t *testing.T) {
	p := New(testLeaseMs)
	p.SubChannel(1)
	p.OnRemoteSub(0, conn(5), 1)
	popAll(p)

	p.PubChannel(1, []byte("hello"))
	outs := popAll(p)

	var sawLocal, sawRemote bool
	for _, o := range outs {
		switch v := o.(type) {
		case OnChannelData:
			sawLocal = true
			if string(v.Data) != "hello" {
				t.Errorf("local data = %q, want %q", v.Data, "hello")
			}
		case SendData:
			sawRemote = true
			if v.Conn != conn(5) || string(v.Data) != "hello" {
				t.Errorf("SendData = %+v, want conn(5)/hello", v)
			}
		}
	}
	if !sawLocal || !sawRemote {
		t.Fatalf("outputs = %v, want both a local delivery and a remote relay", outs)
	}
}

func TestPubChannelWithNoInterestEmitsNothing(t *testing.T) {
	p := New(testLeaseMs)
	p.PubChannel(1, []byte("data"))
	if outs := popAll(p); len(outs) != 0 {
		t.Fatalf("publish to an uninterested channel emitted %v, want nothing", outs)
	}
}

func TestOnRemoteDataForUntrackedChannelDropped(t *testing.T) {
	p := New(testLeaseMs)
	p.OnRemoteData(1, []byte("x"))
	if outs := popAll(p); len(outs) != 0 {
		t.Fatalf("data for an untracked channel emitted %v, want nothing", outs)
	}
}
