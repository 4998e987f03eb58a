// Package stability tracks a Lyapunov-style potential over a sliding window
// and reports whether the agent is diverging or converging.
package stability

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// minTrendSamples is the fewest values a trend is fitted over.
const minTrendSamples = 5

// Config weights the potential and sets the trend threshold.
type Config struct {
	EntropyWeight       float64 `yaml:"entropy_weight"`
	DistanceWeight      float64 `yaml:"distance_weight"`
	StressWeight        float64 `yaml:"stress_weight"`
	Window              int     `yaml:"window"`
	DivergenceThreshold float64 `yaml:"divergence_threshold"`
}

// DefaultConfig returns the standard weights.
func DefaultConfig() Config {
	return Config{
		EntropyWeight:       1.0,
		DistanceWeight:      0.1,
		StressWeight:        0.5,
		Window:              10,
		DivergenceThreshold: 0.05,
	}
}

// Monitor holds a fixed-capacity window of potential values.
type Monitor struct {
	config Config
	values []float64
}

// New creates an empty monitor.
func New(config Config) *Monitor {
	if config.Window < 1 {
		config.Window = 1
	}
	return &Monitor{config: config, values: make([]float64, 0, config.Window)}
}

// CalculateV returns the weighted potential. Negative inputs count as zero.
func (m *Monitor) CalculateV(entropy, distance, stress float64) float64 {
	return m.config.EntropyWeight*nonNeg(entropy) +
		m.config.DistanceWeight*nonNeg(distance) +
		m.config.StressWeight*nonNeg(stress)
}

// Update computes V, appends it to the window and returns it.
func (m *Monitor) Update(entropy, distance, stress float64) float64 {
	v := m.CalculateV(entropy, distance, stress)
	m.Push(v)
	return v
}

// Push appends v, evicting the oldest value when the window is full.
func (m *Monitor) Push(v float64) {
	if len(m.values) == m.config.Window {
		copy(m.values, m.values[1:])
		m.values = m.values[:len(m.values)-1]
	}
	m.values = append(m.values, v)
}

// Trend is the least-squares slope of V against its window index, or 0 with
// fewer than five samples.
func (m *Monitor) Trend() float64 {
	n := len(m.values)
	if n < minTrendSamples {
		return 0
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, m.values, nil, false)
	return slope
}

// Full reports whether the window is at capacity.
func (m *Monitor) Full() bool {
	return len(m.values) == m.config.Window
}

// IsDiverging reports a trend above the threshold once the window is full.
func (m *Monitor) IsDiverging() bool {
	return m.Full() && m.Trend() > m.config.DivergenceThreshold
}

// IsConverging reports a trend below minus the threshold once the window is full.
func (m *Monitor) IsConverging() bool {
	return m.Full() && m.Trend() < -m.config.DivergenceThreshold
}

// Values returns a copy of the window, oldest first.
func (m *Monitor) Values() []float64 {
	return append([]float64(nil), m.values...)
}

// Reset empties the window.
func (m *Monitor) Reset() {
	m.values = m.values[:0]
}

func nonNeg(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(x, 0)
}
