package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// sumTolerance bounds how far a normalized distribution may drift from 1.
const sumTolerance = 1e-9

// #region constructor

// New builds a Model from raw tables. It normalizes every likelihood and
// transition column, derives the preference distribution, normalizes the prior
// and initializes any missing learning counters.
func New(p Params) (*Model, error) {
	nS, nO, nA := len(p.States), len(p.Observations), len(p.Actions)
	if nS == 0 || nO == 0 || nA == 0 {
		return nil, fmt.Errorf("%w: need at least one state, observation and action", ErrInvalidModel)
	}

	m := &Model{
		States:       append([]string(nil), p.States...),
		Observations: append([]string(nil), p.Observations...),
		Actions:      append([]string(nil), p.Actions...),
	}
	var err error
	if m.stateIdx, err = indexNames("state", m.States); err != nil {
		return nil, err
	}
	if m.obsIdx, err = indexNames("observation", m.Observations); err != nil {
		return nil, err
	}
	if m.actionIdx, err = indexNames("action", m.Actions); err != nil {
		return nil, err
	}

	if err := checkTable("likelihood", p.Likelihood, nO, nS, nA); err != nil {
		return nil, err
	}
	if err := checkTable("transition", p.Transition, nS, nS, nA); err != nil {
		return nil, err
	}
	if len(p.LogPreferences) != nO {
		return nil, fmt.Errorf("%w: log-preferences has %d entries, want %d", ErrInvalidModel, len(p.LogPreferences), nO)
	}
	if len(p.Prior) != nS {
		return nil, fmt.Errorf("%w: prior has %d entries, want %d", ErrInvalidModel, len(p.Prior), nS)
	}

	m.A = copyTable(p.Likelihood)
	m.B = copyTable(p.Transition)
	m.LogC = append([]float64(nil), p.LogPreferences...)
	m.C = make([]float64, nO)
	m.D = append([]float64(nil), p.Prior...)

	m.Costs = make([]float64, nA)
	if p.Costs != nil {
		if len(p.Costs) != nA {
			return nil, fmt.Errorf("%w: costs has %d entries, want %d", ErrInvalidModel, len(p.Costs), nA)
		}
		copy(m.Costs, p.Costs)
	}
	m.Kinds = make([]ActionKind, nA)
	if p.Kinds != nil {
		if len(p.Kinds) != nA {
			return nil, fmt.Errorf("%w: kinds has %d entries, want %d", ErrInvalidModel, len(p.Kinds), nA)
		}
		copy(m.Kinds, p.Kinds)
	}

	if err := m.Normalize(); err != nil {
		return nil, err
	}

	if p.LikelihoodCounts != nil {
		if err := checkTable("likelihood counts", p.LikelihoodCounts, nO, nS, nA); err != nil {
			return nil, err
		}
		m.ACounts = copyTable(p.LikelihoodCounts)
	} else {
		m.ACounts = filledTable(nO, nS, nA, 1)
	}
	if p.TransitionCounts != nil {
		if err := checkTable("transition counts", p.TransitionCounts, nS, nS, nA); err != nil {
			return nil, err
		}
		m.BCounts = copyTable(p.TransitionCounts)
	} else {
		m.BCounts = filledTable(nS, nS, nA, 1)
	}
	if p.PreferenceCounts != nil {
		if len(p.PreferenceCounts) != nO {
			return nil, fmt.Errorf("%w: preference counts has %d entries, want %d", ErrInvalidModel, len(p.PreferenceCounts), nO)
		}
		m.CCounts = append([]float64(nil), p.PreferenceCounts...)
	} else {
		// Seeded from the preference distribution so log(counts) keeps the
		// designed preferences until observations accumulate.
		m.CCounts = make([]float64, nO)
		for o, c := range m.C {
			m.CCounts[o] = c * float64(nO)
		}
	}

	return m, nil
}

// #endregion constructor

// #region normalize

// Normalize restores every table invariant in place: likelihood and transition
// columns sum to 1, C = softmax(LogC) and the prior sums to 1.
func (m *Model) Normalize() error {
	for a := range m.Actions {
		for s := range m.States {
			if err := normalizeColumn(m.A, s, a); err != nil {
				return fmt.Errorf("%w: likelihood column (%s, %s): %v", ErrInvalidModel, m.States[s], m.Actions[a], err)
			}
			if err := normalizeColumn(m.B, s, a); err != nil {
				return fmt.Errorf("%w: transition column (%s, %s): %v", ErrInvalidModel, m.States[s], m.Actions[a], err)
			}
		}
	}

	c, err := Softmax(m.LogC)
	if err != nil {
		return fmt.Errorf("%w: preferences: %v", ErrInvalidModel, err)
	}
	copy(m.C, c)

	if err := normalizeVector(m.D); err != nil {
		return fmt.Errorf("%w: prior: %v", ErrInvalidModel, err)
	}
	return nil
}

// #endregion normalize

// #region validate

// Validate re-checks all invariants without modifying the model.
// Used after a model has been mutated or loaded from outside.
func (m *Model) Validate() error {
	nS, nO, nA := len(m.States), len(m.Observations), len(m.Actions)
	if nS == 0 || nO == 0 || nA == 0 {
		return fmt.Errorf("%w: empty symbol set", ErrInvalidModel)
	}
	if err := checkTable("likelihood", m.A, nO, nS, nA); err != nil {
		return err
	}
	if err := checkTable("transition", m.B, nS, nS, nA); err != nil {
		return err
	}
	if err := checkTable("likelihood counts", m.ACounts, nO, nS, nA); err != nil {
		return err
	}
	if err := checkTable("transition counts", m.BCounts, nS, nS, nA); err != nil {
		return err
	}
	if len(m.LogC) != nO || len(m.C) != nO || len(m.CCounts) != nO {
		return fmt.Errorf("%w: preference vectors must have %d entries", ErrInvalidModel, nO)
	}
	if len(m.D) != nS {
		return fmt.Errorf("%w: prior must have %d entries", ErrInvalidModel, nS)
	}
	if len(m.Costs) != nA || len(m.Kinds) != nA {
		return fmt.Errorf("%w: costs and kinds must have %d entries", ErrInvalidModel, nA)
	}

	for a := 0; a < nA; a++ {
		for s := 0; s < nS; s++ {
			if sum, ok := columnSum(m.A, s, a); !ok || math.Abs(sum-1) > sumTolerance {
				return fmt.Errorf("%w: likelihood column (%s, %s) sums to %g", ErrInvalidModel, m.States[s], m.Actions[a], sum)
			}
			if sum, ok := columnSum(m.B, s, a); !ok || math.Abs(sum-1) > sumTolerance {
				return fmt.Errorf("%w: transition column (%s, %s) sums to %g", ErrInvalidModel, m.States[s], m.Actions[a], sum)
			}
		}
	}
	if sum, ok := vectorSum(m.C); !ok || math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("%w: preference distribution sums to %g", ErrInvalidModel, sum)
	}
	if sum, ok := vectorSum(m.D); !ok || math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("%w: prior sums to %g", ErrInvalidModel, sum)
	}
	for _, v := range m.CCounts {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: preference counter %g", ErrInvalidModel, v)
		}
	}
	return nil
}

// #endregion validate

// #region lookup

// StateIndex resolves a state name.
func (m *Model) StateIndex(name string) (int, error) {
	return lookup(m.stateIdx, "state", name)
}

// ObservationIndex resolves an observation name.
func (m *Model) ObservationIndex(name string) (int, error) {
	return lookup(m.obsIdx, "observation", name)
}

// ActionIndex resolves an action name.
func (m *Model) ActionIndex(name string) (int, error) {
	return lookup(m.actionIdx, "action", name)
}

func lookup(idx map[string]int, kind, name string) (int, error) {
	i, ok := idx[name]
	if !ok {
		return -1, fmt.Errorf("%w: %s %q", ErrUnknownSymbol, kind, name)
	}
	return i, nil
}

// #endregion lookup

// #region clone

// Clone returns a deep copy sharing no backing arrays with m.
func (m *Model) Clone() *Model {
	c := &Model{
		States:       append([]string(nil), m.States...),
		Observations: append([]string(nil), m.Observations...),
		Actions:      append([]string(nil), m.Actions...),
		A:            copyTable(m.A),
		B:            copyTable(m.B),
		LogC:         append([]float64(nil), m.LogC...),
		C:            append([]float64(nil), m.C...),
		D:            append([]float64(nil), m.D...),
		Costs:        append([]float64(nil), m.Costs...),
		Kinds:        append([]ActionKind(nil), m.Kinds...),
		ACounts:      copyTable(m.ACounts),
		BCounts:      copyTable(m.BCounts),
		CCounts:      append([]float64(nil), m.CCounts...),
	}
	c.stateIdx, _ = indexNames("state", c.States)
	c.obsIdx, _ = indexNames("observation", c.Observations)
	c.actionIdx, _ = indexNames("action", c.Actions)
	return c
}

// #endregion clone

// #region helpers

// Softmax returns exp(v - max) / sum, failing on non-finite input.
func Softmax(v []float64) ([]float64, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("non-finite value %g", x)
		}
	}
	maxV := floats.Max(v)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Exp(x - maxV)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out, nil
}

func indexNames(kind string, names []string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%w: empty %s name at %d", ErrInvalidModel, kind, i)
		}
		if _, dup := idx[n]; dup {
			return nil, fmt.Errorf("%w: duplicate %s %q", ErrInvalidModel, kind, n)
		}
		idx[n] = i
	}
	return idx, nil
}

func checkTable(name string, t [][][]float64, rows, states, actions int) error {
	if len(t) != rows {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrInvalidModel, name, len(t), rows)
	}
	for r := range t {
		if len(t[r]) != states {
			return fmt.Errorf("%w: %s row %d has %d states, want %d", ErrInvalidModel, name, r, len(t[r]), states)
		}
		for s := range t[r] {
			if len(t[r][s]) != actions {
				return fmt.Errorf("%w: %s [%d][%d] has %d actions, want %d", ErrInvalidModel, name, r, s, len(t[r][s]), actions)
			}
			for _, v := range t[r][s] {
				if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%w: %s contains %g", ErrInvalidModel, name, v)
				}
			}
		}
	}
	return nil
}

func columnSum(t [][][]float64, s, a int) (float64, bool) {
	var sum float64
	for r := range t {
		v := t[r][s][a]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return math.NaN(), false
		}
		sum += v
	}
	return sum, true
}

func normalizeColumn(t [][][]float64, s, a int) error {
	sum, ok := columnSum(t, s, a)
	if !ok {
		return fmt.Errorf("negative or non-finite entry")
	}
	if sum == 0 {
		return fmt.Errorf("column sums to zero")
	}
	for r := range t {
		t[r][s][a] /= sum
	}
	return nil
}

func vectorSum(v []float64) (float64, bool) {
	var sum float64
	for _, x := range v {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return math.NaN(), false
		}
		sum += x
	}
	return sum, true
}

func normalizeVector(v []float64) error {
	sum, ok := vectorSum(v)
	if !ok {
		return fmt.Errorf("negative or non-finite entry")
	}
	if sum == 0 {
		return fmt.Errorf("sums to zero")
	}
	floats.Scale(1/sum, v)
	return nil
}

func copyTable(t [][][]float64) [][][]float64 {
	if t == nil {
		return nil
	}
	out := make([][][]float64, len(t))
	for r := range t {
		out[r] = make([][]float64, len(t[r]))
		for s := range t[r] {
			out[r][s] = append([]float64(nil), t[r][s]...)
		}
	}
	return out
}

func filledTable(rows, states, actions int, v float64) [][][]float64 {
	out := make([][][]float64, rows)
	for r := range out {
		out[r] = make([][]float64, states)
		for s := range out[r] {
			out[r][s] = make([]float64, actions)
			for a := range out[r][s] {
				out[r][s][a] = v
			}
		}
	}
	return out
}

// #endregion helpers
