package policy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// minTemperature keeps the softmax defined as temperature approaches zero.
const minTemperature = 1e-6

// #region tie-breaker

// TieBreaker adjusts a policy's EFE from a signal outside the generative model.
// The selector only consults it when belief entropy exceeds TieBreakEntropy.
type TieBreaker interface {
	Adjust(s Scored, entropy float64) float64
}

// NoTieBreak leaves every EFE unchanged.
type NoTieBreak struct{}

// Adjust returns s.EFE.
func (NoTieBreak) Adjust(s Scored, _ float64) float64 { return s.EFE }

// GaugeTieBreaker scales EFE by (1 - Weight*gauge) where gauge is an external
// exploration reading in [0, 1]. It ships disabled with a zero weight; until a
// weight is validated against the anomaly thresholds it behaves as NoTieBreak.
type GaugeTieBreaker struct {
	Gauge    func() float64
	Weight   float64
	Disabled bool
}

// NewGaugeTieBreaker wires gauge in the disabled state.
func NewGaugeTieBreaker(gauge func() float64) *GaugeTieBreaker {
	return &GaugeTieBreaker{Gauge: gauge, Disabled: true}
}

// Adjust applies the gauge when enabled.
func (t *GaugeTieBreaker) Adjust(s Scored, _ float64) float64 {
	if t == nil || t.Disabled || t.Gauge == nil {
		return s.EFE
	}
	return s.EFE * (1 - t.Weight*t.Gauge())
}

// #endregion tie-breaker

// #region selector

// Selector turns scored policies into a single action.
type Selector struct {
	config     SelectorConfig
	tieBreaker TieBreaker
}

// NewSelector creates a selector. tieBreaker may be nil.
func NewSelector(config SelectorConfig, tieBreaker TieBreaker) *Selector {
	if tieBreaker == nil {
		tieBreaker = NoTieBreak{}
	}
	return &Selector{config: config, tieBreaker: tieBreaker}
}

// Select truncates to the top MaxPolicies, applies the tie-breaker (above the
// entropy gate) and the skill-prior bias, re-ranks, and picks the first action
// of the most probable policy under softmax(-EFE / temperature).
// scored must be sorted by ascending EFE; it is not modified.
func (s *Selector) Select(scored []Scored, entropy float64, priors SkillPriors) (Selection, error) {
	if len(scored) == 0 {
		return Selection{}, fmt.Errorf("no policies to select from")
	}

	n := len(scored)
	if s.config.MaxPolicies > 0 && n > s.config.MaxPolicies {
		n = s.config.MaxPolicies
	}
	ranked := make([]Scored, n)
	copy(ranked, scored[:n])

	if entropy > s.config.TieBreakEntropy {
		for i := range ranked {
			ranked[i].EFE = s.tieBreaker.Adjust(ranked[i], entropy)
		}
	}

	for i := range ranked {
		prior, ok := priors[ranked[i].First()]
		if !ok {
			continue
		}
		ranked[i].EFE -= s.config.SkillBiasWeight * prior.SuccessRate * math.Max(prior.Confidence, 0)
	}
	sortScored(ranked)

	probs := Softmax(ranked, s.config.Temperature)
	best := floats.MaxIdx(probs)

	return Selection{
		Action:        ranked[best].First(),
		Ranked:        ranked,
		Probabilities: probs,
	}, nil
}

// #endregion selector

// #region softmax

// Softmax returns P(policy) ∝ exp(-EFE / temperature). Temperature is clamped
// to a small positive minimum: near zero it approaches argmin-EFE, large values
// approach uniform.
func Softmax(scored []Scored, temperature float64) []float64 {
	t := math.Max(temperature, minTemperature)
	logits := make([]float64, len(scored))
	for i, s := range scored {
		logits[i] = -s.EFE / t
	}
	lse := floats.LogSumExp(logits)
	for i := range logits {
		logits[i] = math.Exp(logits[i] - lse)
	}
	return logits
}

// #endregion softmax
