package stability

import (
	"math"
	"testing"
)

func TestCalculateVClampsNegatives(t *testing.T) {
	m := New(Config{EntropyWeight: 1, DistanceWeight: 2, StressWeight: 3, Window: 5})
	if got := m.CalculateV(1, 1, 1); got != 6 {
		t.Errorf("expected 6, got %f", got)
	}
	if got := m.CalculateV(-1, 2, -5); got != 4 {
		t.Errorf("expected negatives clamped to 0, got %f", got)
	}
}

func TestIncreasingSequenceDiverges(t *testing.T) {
	m := New(DefaultConfig())
	for i := 0; i < DefaultConfig().Window; i++ {
		m.Update(float64(i)*0.5, 0, 0)
	}
	if !m.IsDiverging() {
		t.Errorf("expected diverging, trend %f", m.Trend())
	}
	if m.IsConverging() {
		t.Error("expected not converging")
	}
	if math.Abs(m.Trend()-0.5) > 1e-9 {
		t.Errorf("expected slope 0.5, got %f", m.Trend())
	}
}

func TestDecreasingSequenceConverges(t *testing.T) {
	m := New(DefaultConfig())
	for i := DefaultConfig().Window; i > 0; i-- {
		m.Update(float64(i), 0, 0)
	}
	if !m.IsConverging() {
		t.Errorf("expected converging, trend %f", m.Trend())
	}
	if m.IsDiverging() {
		t.Error("expected not diverging")
	}
}

func TestNoTrendUntilEnoughSamples(t *testing.T) {
	m := New(DefaultConfig())
	for i := 0; i < 4; i++ {
		m.Push(float64(i * 10))
	}
	if got := m.Trend(); got != 0 {
		t.Errorf("expected 0 trend below 5 samples, got %f", got)
	}
	m.Push(40)
	if m.Trend() <= 0 {
		t.Errorf("expected positive trend with 5 samples, got %f", m.Trend())
	}
	if m.IsDiverging() {
		t.Error("expected no divergence before the window is full")
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	m := New(Config{EntropyWeight: 1, Window: 3})
	for _, v := range []float64{1, 2, 3, 4} {
		m.Push(v)
	}
	got := m.Values()
	if len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Errorf("expected [2 3 4], got %v", got)
	}
	m.Reset()
	if len(m.Values()) != 0 {
		t.Errorf("expected empty window after reset, got %v", m.Values())
	}
}
