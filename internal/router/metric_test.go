package router

import "testing"

func TestPercentRawRoundTrip(t *testing.T) {
	tests := []float32{0, 0.01, 1.5, 12.34, 100}
	for _, percent := range tests {
		raw := PercentToRaw(percent)
		got := RawToPercent(raw)
		if diff := got - percent; diff > 0.01 || diff < -0.01 {
			t.Errorf("PercentToRaw/RawToPercent(%v) round trip = %v, want within 0.01", percent, got)
		}
	}
}

func TestMetricAddLocalComposesAdditiveFields(t *testing.T) {
	m := Metric{RTT: 20, Jitter: 2, Bandwidth: 5000, LossRaw: 0}
	s := ConnectionStats{RTTMs: 10, JitterMs: 1, BandwidthKbps: 8000, LossPercentRaw: 0}

	got := m.AddLocal(s)
	if got.RTT != 30 {
		t.Errorf("RTT = %d, want 30", got.RTT)
	}
	if got.Jitter != 3 {
		t.Errorf("Jitter = %d, want 3", got.Jitter)
	}
	if got.Bandwidth != 5000 {
		t.Errorf("Bandwidth = %d, want min(5000,8000)=5000", got.Bandwidth)
	}
}

func TestMetricAddLocalBandwidthIsBottleneck(t *testing.T) {
	m := Metric{Bandwidth: 1000}
	s := ConnectionStats{BandwidthKbps: 200}
	if got := m.AddLocal(s).Bandwidth; got != 200 {
		t.Errorf("Bandwidth = %d, want 200", got)
	}
}

// Loss composes as independent-link failure probability, not a sum:
// two 50% links in series produce 75% loss, not 100%.
func TestMetricAddLocalLossComposition(t *testing.T) {
	m := Metric{LossRaw: PercentToRaw(50)}
	s := ConnectionStats{LossPercentRaw: PercentToRaw(50)}
	got := RawToPercent(m.AddLocal(s).LossRaw)
	if got != 75 {
		t.Errorf("composed loss = %v%%, want 75%%", got)
	}
}

func TestMetricAddLocalLossCommutative(t *testing.T) {
	a := Metric{LossRaw: PercentToRaw(10)}
	b := ConnectionStats{LossPercentRaw: PercentToRaw(30)}
	ab := a.AddLocal(b).LossRaw

	c := Metric{LossRaw: PercentToRaw(30)}
	d := ConnectionStats{LossPercentRaw: PercentToRaw(10)}
	cd := c.AddLocal(d).LossRaw

	if ab != cd {
		t.Errorf("loss composition not commutative: %d vs %d", ab, cd)
	}
}

// Composing three links in series should give the same result
// regardless of which pair is combined first, within fixed-point
// rounding.
func TestMetricAddLocalLossAssociative(t *testing.T) {
	l1, l2, l3 := PercentToRaw(10), PercentToRaw(20), PercentToRaw(5)

	left := Metric{LossRaw: l1}.
		AddLocal(ConnectionStats{LossPercentRaw: l2}).LossRaw
	left = Metric{LossRaw: left}.AddLocal(ConnectionStats{LossPercentRaw: l3}).LossRaw

	right := Metric{LossRaw: l2}.
		AddLocal(ConnectionStats{LossPercentRaw: l3}).LossRaw
	right = Metric{LossRaw: l1}.AddLocal(ConnectionStats{LossPercentRaw: right}).LossRaw

	diff := int(left) - int(right)
	if diff < -1 || diff > 1 {
		t.Errorf("loss composition not associative within rounding: %d vs %d", left, right)
	}
}

func TestMetricScoreIsRTT(t *testing.T) {
	m := Metric{RTT: 42}
	if m.Score() != 42 {
		t.Errorf("Score() = %d, want 42", m.Score())
	}
}
