package metrics

import (
	"testing"

	"p2pstreamd/internal/chord"
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/runner"
)

func TestNewRegistersCollectors(t *testing.T) {
	m := New(ring.NodeId(1))
	if m.Registry == nil {
		t.Fatal("Registry is nil")
	}
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestInstancesAreIsolated(t *testing.T) {
	a := New(ring.NodeId(1))
	b := New(ring.NodeId(2))

	a.ObserveTick()
	a.ObserveTick()

	families, err := b.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "p2pstreamd_ticks_total" {
			for _, metric := range f.GetMetric() {
				if metric.GetCounter().GetValue() != 0 {
					t.Error("b's registry saw a's tick count; registries are not isolated")
				}
			}
		}
	}
}

func TestRefreshReflectsRouterAndFingerState(t *testing.T) {
	m := New(ring.NodeId(1))
	r := runner.New(chord.NodeInfo{NodeId: 1, Address: "a"}, 10000, 10000, 10000, 5000)

	r.AddChannel(100)
	m.Refresh(r)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var sawActiveChannels bool
	for _, f := range families {
		if f.GetName() == "p2pstreamd_active_channels" {
			sawActiveChannels = true
			if got := f.GetMetric()[0].GetGauge().GetValue(); got != 1 {
				t.Errorf("active channels = %v, want 1", got)
			}
		}
		if f.GetName() == "p2pstreamd_finger_table_fill_ratio" {
			if got := f.GetMetric()[0].GetGauge().GetValue(); got != 0 {
				t.Errorf("finger table fill ratio = %v, want 0 for a node with no fingers", got)
			}
		}
	}
	if !sawActiveChannels {
		t.Fatal("p2pstreamd_active_channels was never registered")
	}
}
