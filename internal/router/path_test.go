package router

import (
	"testing"

	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/wire"
)

func TestFromRowCopiesHops(t *testing.T) {
	row := wire.RouterRow{
		Channel:   1,
		Bandwidth: 500,
		RTT:       10,
		Loss:      2.5,
		Jitter:    3,
		Hops:      []ring.NodeId{7, 8},
	}
	path := FromRow(100, row)

	if path.LastSync != 100 {
		t.Errorf("LastSync = %d, want 100", path.LastSync)
	}
	if path.Metric.RTT != 10 || path.Metric.Jitter != 3 || path.Metric.Bandwidth != 500 {
		t.Errorf("metric not translated faithfully: %+v", path.Metric)
	}
	if got := RawToPercent(path.Metric.LossRaw); got != 2.5 {
		t.Errorf("Loss = %v, want 2.5", got)
	}

	path.Hops[0] = 999
	if row.Hops[0] == 999 {
		t.Fatal("FromRow must copy Hops, not alias the row's slice")
	}
}

// ToRow's bandwidth-zeroing is a known lossy projection (see SPEC_FULL.md §6);
// this test pins the behavior so a change to it is deliberate.
func TestToRowZeroesBandwidth(t *testing.T) {
	path := ChannelPath{Metric: Metric{RTT: 5, Bandwidth: 1000}, Hops: []ring.NodeId{1}}
	row := path.ToRow(42)
	if row.Bandwidth != 0 {
		t.Errorf("ToRow Bandwidth = %d, want 0", row.Bandwidth)
	}
	if row.Channel != 42 {
		t.Errorf("Channel = %v, want 42", row.Channel)
	}
}

func TestHasHop(t *testing.T) {
	p := ChannelPath{Hops: []ring.NodeId{1, 2, 3}}
	if !p.hasHop(2) {
		t.Error("hasHop(2) = false, want true")
	}
	if p.hasHop(9) {
		t.Error("hasHop(9) = true, want false")
	}
}
