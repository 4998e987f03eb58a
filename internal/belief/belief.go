// Package belief implements Bayesian state estimation over a generative model.
// All functions are pure: inputs are never modified and a fresh Belief is returned.
package belief

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
)

// Floor is the smallest probability used before any logarithm or product.
const Floor = 1e-12

// Belief is a probability vector over the model's states.
type Belief []float64

// Uniform returns the maximum-entropy belief over n states.
func Uniform(n int) Belief {
	b := make(Belief, n)
	for i := range b {
		b[i] = 1 / float64(n)
	}
	return b
}

// Prior returns a copy of the model's prior.
func Prior(m *model.Model) Belief {
	return append(Belief(nil), m.D...)
}

// #region predict

// PredictState returns P(s' | belief, action): the action's transition column
// applied to the belief, renormalized.
func PredictState(m *model.Model, b Belief, action int) Belief {
	out := make(Belief, len(m.States))
	for next := range m.B {
		var p float64
		for s, bs := range b {
			p += m.B[next][s][action] * bs
		}
		out[next] = p
	}
	return normalize(out)
}

// PredictObservations returns P(o | stateBelief, action).
func PredictObservations(m *model.Model, stateBelief Belief, action int) []float64 {
	out := make([]float64, len(m.Observations))
	for o := range m.A {
		var p float64
		for s, bs := range stateBelief {
			p += m.A[o][s][action] * bs
		}
		out[o] = p
	}
	return normalize(out)
}

// #endregion predict

// #region update

// Update returns the posterior after taking action and observing obs:
// P(s' | o) ∝ P(o | s', a) · P(s' | belief, a). Both factors are clipped to
// Floor so an observation the model considered impossible still yields a
// proper distribution.
func Update(m *model.Model, b Belief, action, obs int) Belief {
	predicted := PredictState(m, b, action)
	post := make(Belief, len(predicted))
	for s, ps := range predicted {
		post[s] = clip(m.A[obs][s][action]) * clip(ps)
	}
	return normalize(post)
}

// UpdateNamed is Update addressed by symbol names.
func UpdateNamed(m *model.Model, b Belief, action, obs string) (Belief, error) {
	a, err := m.ActionIndex(action)
	if err != nil {
		return nil, err
	}
	o, err := m.ObservationIndex(obs)
	if err != nil {
		return nil, err
	}
	return Update(m, b, a, o), nil
}

// Posterior is Update on an already-predicted state belief: the hypothetical
// posterior used during planning. ok is false when the observation has zero
// joint mass under predicted.
func Posterior(m *model.Model, predicted Belief, action, obs int) (post Belief, mass float64, ok bool) {
	post = make(Belief, len(predicted))
	for s, ps := range predicted {
		post[s] = m.A[obs][s][action] * ps
		mass += post[s]
	}
	if mass <= 0 {
		return nil, 0, false
	}
	floats.Scale(1/mass, post)
	return post, mass, true
}

// #endregion update

// #region measures

// Entropy returns the Shannon entropy (nats) of p.
func Entropy(p []float64) float64 {
	return stat.Entropy(p)
}

// MaxEntropy is log(n), the entropy of a uniform distribution over n outcomes.
func MaxEntropy(n int) float64 {
	if n <= 1 {
		return 0
	}
	return math.Log(float64(n))
}

// KL returns KL(p ‖ q) with q clipped to Floor.
func KL(p, q []float64) float64 {
	clipped := make([]float64, len(q))
	for i, v := range q {
		clipped[i] = clip(v)
	}
	return stat.KullbackLeibler(p, clipped)
}

// Surprise returns -log P(obs) under the predicted observation distribution.
func Surprise(predictedObs []float64, obs int) float64 {
	return -math.Log(clip(predictedObs[obs]))
}

// MAP returns the index of the most probable state; ties go to the lowest index.
func MAP(b Belief) int {
	if len(b) == 0 {
		return -1
	}
	return floats.MaxIdx(b)
}

// #endregion measures

// #region helpers

func clip(p float64) float64 {
	if p < Floor || math.IsNaN(p) {
		return Floor
	}
	return p
}

// normalize rescales v to sum to 1, falling back to uniform when all mass is lost.
func normalize(v []float64) []float64 {
	sum := floats.Sum(v)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		for i := range v {
			v[i] = 1 / float64(len(v))
		}
		return v
	}
	floats.Scale(1/sum, v)
	return v
}

// #endregion helpers
