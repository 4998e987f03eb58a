package policy

import (
	"fmt"
	"math"

	"github.com/mrlecko/macgyver-mud-sub001/internal/belief"
	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
)

// #region evaluator

// Evaluator scores action sequences by Expected Free Energy.
type Evaluator struct {
	m      *model.Model
	config EvaluatorConfig
}

// NewEvaluator creates an evaluator over m. The model is read, never modified.
func NewEvaluator(m *model.Model, config EvaluatorConfig) *Evaluator {
	return &Evaluator{m: m, config: config}
}

// Config returns the evaluator's configuration.
func (e *Evaluator) Config() EvaluatorConfig {
	return e.config
}

// #endregion evaluator

// #region evaluate

// Evaluate rolls b forward through p and returns the summed EFE.
// Between steps the belief advances to the predicted state, not a posterior:
// the real observation is unknown at planning time.
func (e *Evaluator) Evaluate(b belief.Belief, p Policy) (Scored, error) {
	if len(p) == 0 {
		return Scored{}, fmt.Errorf("empty policy")
	}
	n := node{b: b}
	for _, name := range p {
		a, err := e.m.ActionIndex(name)
		if err != nil {
			return Scored{}, err
		}
		n = e.extend(n, a)
	}
	return n.scored(e.m), nil
}

// #endregion evaluate

// #region step

// node is a partial policy with its accumulated score and rolled-forward belief.
type node struct {
	actions []int
	total   Scored
	b       belief.Belief
}

func (n node) scored(m *model.Model) Scored {
	s := n.total
	s.Policy = make(Policy, len(n.actions))
	for i, a := range n.actions {
		s.Policy[i] = m.Actions[a]
	}
	return s
}

// extend appends action a to n, adding one step of EFE.
func (e *Evaluator) extend(n node, a int) node {
	m := e.m
	predicted := belief.PredictState(m, n.b, a)
	obs := belief.PredictObservations(m, predicted, a)

	// risk: expected negative log-preference of predicted outcomes
	var risk float64
	for o, po := range obs {
		risk -= po * logFloor(m.C[o])
	}

	// ambiguity: expected entropy of the observation channel
	var ambiguity float64
	column := make([]float64, len(m.Observations))
	for s, ps := range predicted {
		if ps == 0 {
			continue
		}
		for o := range m.A {
			column[o] = m.A[o][s][a]
		}
		ambiguity += ps * belief.Entropy(column)
	}

	// epistemic value: expected KL between hypothetical posterior and prediction
	var epistemic float64
	for o, po := range obs {
		if po == 0 {
			continue
		}
		post, _, ok := belief.Posterior(m, predicted, a, o)
		if !ok {
			continue
		}
		epistemic += po * belief.KL(post, predicted)
	}

	entropy := belief.Entropy(n.b)
	costScale := 0.0
	if maxH := belief.MaxEntropy(len(m.States)); maxH > 0 {
		costScale = entropy / maxH
	}
	costPenalty := e.config.CostWeight * m.Costs[a]
	var bonus float64
	switch m.Kinds[a] {
	case model.KindAct:
		costPenalty *= 2
	case model.KindSense:
		bonus = entropy * e.config.SenseBonusWeight
	}
	cost := costPenalty * costScale

	step := risk + ambiguity - e.config.InfoWeight*epistemic + cost - bonus

	next := node{
		actions: append(append(make([]int, 0, len(n.actions)+1), n.actions...), a),
		total: Scored{
			EFE:       n.total.EFE + step,
			Risk:      n.total.Risk + risk,
			Ambiguity: n.total.Ambiguity + ambiguity,
			Epistemic: n.total.Epistemic + epistemic,
			Cost:      n.total.Cost + cost,
			Bonus:     n.total.Bonus + bonus,
		},
		b: predicted,
	}
	return next
}

func logFloor(p float64) float64 {
	if p < belief.Floor {
		p = belief.Floor
	}
	return math.Log(p)
}

// #endregion step
