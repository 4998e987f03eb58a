// Package autotune keeps running statistics per named metric and flags
// statistically anomalous values.
package autotune

import (
	"math"
	"sort"
)

// #region config

// Config controls the tuner.
type Config struct {
	// Decay < 1 turns on the bounded-memory approximation: after each update
	// M2 is scaled by Decay and the count is capped at 1/(1-Decay). This is
	// not an exact exponential moving variance; anomaly thresholds were tuned
	// against it as is.
	Decay          float64 `yaml:"decay"`
	MinSamples     int     `yaml:"min_samples"`     // z-score is 0 below this count
	ThresholdSigma float64 `yaml:"threshold_sigma"` // |z| above this is an anomaly
}

// DefaultConfig returns the standard tuner settings.
func DefaultConfig() Config {
	return Config{
		Decay:          1.0,
		MinSamples:     10,
		ThresholdSigma: 3.0,
	}
}

// #endregion config

// #region stats

// Stats is the summary of one metric.
type Stats struct {
	Mean   float64
	StdDev float64 // unbiased sample std dev, 0 when Count < 2
	Count  float64 // effective sample count, capped under decay
}

type metric struct {
	mean  float64
	m2    float64
	count float64
}

// #endregion stats

// #region tuner

// Tuner tracks (mean, M2, count) per metric name. It is owned by a single
// agent and is not safe for concurrent use.
type Tuner struct {
	config  Config
	metrics map[string]*metric
}

// New creates an empty tuner.
func New(config Config) *Tuner {
	return &Tuner{config: config, metrics: make(map[string]*metric)}
}

// Observe folds x into the named metric using Welford's update.
func (t *Tuner) Observe(name string, x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return
	}
	st, ok := t.metrics[name]
	if !ok {
		st = &metric{}
		t.metrics[name] = st
	}
	st.count++
	delta := x - st.mean
	st.mean += delta / st.count
	delta2 := x - st.mean
	st.m2 += delta * delta2

	if d := t.config.Decay; d > 0 && d < 1 {
		st.m2 *= d
		st.count = math.Min(st.count, 1/(1-d))
	}
}

// Stats returns the summary for name. An unknown metric has zero stats.
func (t *Tuner) Stats(name string) Stats {
	st, ok := t.metrics[name]
	if !ok {
		return Stats{}
	}
	s := Stats{Mean: st.mean, Count: st.count}
	if st.count >= 2 {
		s.StdDev = math.Sqrt(st.m2 / (st.count - 1))
	}
	return s
}

// ZScore returns (x - mean) / std. It is 0 below MinSamples or when the
// std dev is zero.
func (t *Tuner) ZScore(name string, x float64) float64 {
	s := t.Stats(name)
	if s.Count < float64(t.config.MinSamples) || s.StdDev == 0 {
		return 0
	}
	return (x - s.Mean) / s.StdDev
}

// IsAnomaly reports whether |z| exceeds ThresholdSigma.
func (t *Tuner) IsAnomaly(name string, x float64) bool {
	return math.Abs(t.ZScore(name, x)) > t.config.ThresholdSigma
}

// CheckAndObserve tests x against the current statistics and then folds it in.
func (t *Tuner) CheckAndObserve(name string, x float64) bool {
	anomaly := t.IsAnomaly(name, x)
	t.Observe(name, x)
	return anomaly
}

// Metrics returns the tracked metric names in sorted order.
func (t *Tuner) Metrics() []string {
	names := make([]string, 0, len(t.metrics))
	for name := range t.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset forgets every metric.
func (t *Tuner) Reset() {
	t.metrics = make(map[string]*metric)
}

// #endregion tuner
