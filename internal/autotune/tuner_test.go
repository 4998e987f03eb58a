package autotune

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestWelfordMatchesSampleStats(t *testing.T) {
	tu := New(DefaultConfig())
	xs := []float64{1, 2, 3, 4, 5}
	for _, x := range xs {
		tu.Observe("entropy", x)
	}
	s := tu.Stats("entropy")

	if s.Mean != 3.0 {
		t.Errorf("expected mean 3.0, got %f", s.Mean)
	}
	if math.Abs(s.StdDev-1.58114) > 1e-5 {
		t.Errorf("expected std dev 1.58114, got %f", s.StdDev)
	}
	if s.Count != 5 {
		t.Errorf("expected count 5, got %f", s.Count)
	}

	mean, std := stat.MeanStdDev(xs, nil)
	if math.Abs(mean-s.Mean) > 1e-12 || math.Abs(std-s.StdDev) > 1e-12 {
		t.Errorf("expected (%f, %f) from batch stats, got (%f, %f)", mean, std, s.Mean, s.StdDev)
	}
}

func TestStdDevZeroBelowTwoSamples(t *testing.T) {
	tu := New(DefaultConfig())
	tu.Observe("x", 7)
	if s := tu.Stats("x"); s.StdDev != 0 || s.Mean != 7 {
		t.Errorf("expected mean 7 std 0, got %+v", s)
	}
	if s := tu.Stats("missing"); s != (Stats{}) {
		t.Errorf("expected zero stats for unknown metric, got %+v", s)
	}
}

func TestAnomalyAfterTightDistribution(t *testing.T) {
	tu := New(DefaultConfig())
	for i := 0; i < 50; i++ {
		x := 0.01
		if i%2 == 0 {
			x = -0.01
		}
		tu.Observe("error", x)
	}
	if !tu.IsAnomaly("error", 5.0) {
		t.Errorf("expected 5.0 to be an anomaly, z=%f", tu.ZScore("error", 5.0))
	}
	if tu.IsAnomaly("error", 0.0) {
		t.Errorf("expected 0.0 not to be an anomaly, z=%f", tu.ZScore("error", 0.0))
	}
}

func TestNoAnomalyBelowMinSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 10
	tu := New(cfg)
	for i := 0; i < 9; i++ {
		tu.Observe("error", float64(i%2))
	}
	for _, x := range []float64{1e9, -1e9, 0} {
		if tu.IsAnomaly("error", x) {
			t.Errorf("expected no anomaly below min samples for %g", x)
		}
		if z := tu.ZScore("error", x); z != 0 {
			t.Errorf("expected z 0 below min samples, got %f", z)
		}
	}
}

func TestZeroStdDevIsNotAnomaly(t *testing.T) {
	tu := New(DefaultConfig())
	for i := 0; i < 20; i++ {
		tu.Observe("flat", 1)
	}
	if tu.IsAnomaly("flat", 100) {
		t.Error("expected zero-variance metric to report no anomaly")
	}
}

func TestCheckAndObserveUsesPriorStats(t *testing.T) {
	tu := New(DefaultConfig())
	for i := 0; i < 30; i++ {
		tu.Observe("e", float64(i%3))
	}
	before := tu.Stats("e").Count
	if !tu.CheckAndObserve("e", 50) {
		t.Error("expected 50 to be flagged against prior stats")
	}
	if tu.Stats("e").Count != before+1 {
		t.Errorf("expected observation to be recorded, count %f", tu.Stats("e").Count)
	}
}

func TestDecayCapsCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Decay = 0.9
	tu := New(cfg)
	for i := 0; i < 100; i++ {
		tu.Observe("e", float64(i%5))
	}
	if s := tu.Stats("e"); math.Abs(s.Count-10) > 1e-9 {
		t.Errorf("expected count capped at 10, got %f", s.Count)
	}
}

func TestIgnoresNonFinite(t *testing.T) {
	tu := New(DefaultConfig())
	tu.Observe("e", math.NaN())
	tu.Observe("e", math.Inf(1))
	if len(tu.Metrics()) != 0 {
		t.Errorf("expected no metrics, got %v", tu.Metrics())
	}
}
