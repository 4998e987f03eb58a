package model

import (
	"fmt"
	"math"
)

// #region learn

// Learn applies a batch of counter increments and then renormalizes the whole
// model once. Touched likelihood and transition columns are rebuilt from their
// counters; any preference increment recomputes LogC as log(counts + eps).
//
// The batch is validated before anything is mutated, so a rejected batch
// leaves the model unchanged.
func (m *Model) Learn(batch []Increment, eps float64) error {
	nS, nO, nA := len(m.States), len(m.Observations), len(m.Actions)
	for i, inc := range batch {
		if inc.Amount < 0 || math.IsNaN(inc.Amount) || math.IsInf(inc.Amount, 0) {
			return fmt.Errorf("increment %d: invalid amount %g", i, inc.Amount)
		}
		switch inc.Table {
		case TableLikelihood:
			if !inRange(inc.Row, nO) || !inRange(inc.State, nS) || !inRange(inc.Action, nA) {
				return fmt.Errorf("increment %d: likelihood index (%d, %d, %d) out of range", i, inc.Row, inc.State, inc.Action)
			}
		case TableTransition:
			if !inRange(inc.Row, nS) || !inRange(inc.State, nS) || !inRange(inc.Action, nA) {
				return fmt.Errorf("increment %d: transition index (%d, %d, %d) out of range", i, inc.Row, inc.State, inc.Action)
			}
		case TablePreference:
			if !inRange(inc.Row, nO) {
				return fmt.Errorf("increment %d: preference index %d out of range", i, inc.Row)
			}
		default:
			return fmt.Errorf("increment %d: unknown table %d", i, inc.Table)
		}
	}

	type column struct{ s, a int }
	touchedA := make(map[column]struct{})
	touchedB := make(map[column]struct{})
	prefTouched := false

	for _, inc := range batch {
		switch inc.Table {
		case TableLikelihood:
			m.ACounts[inc.Row][inc.State][inc.Action] += inc.Amount
			touchedA[column{inc.State, inc.Action}] = struct{}{}
		case TableTransition:
			m.BCounts[inc.Row][inc.State][inc.Action] += inc.Amount
			touchedB[column{inc.State, inc.Action}] = struct{}{}
		case TablePreference:
			m.CCounts[inc.Row] += inc.Amount
			prefTouched = true
		}
	}

	for c := range touchedA {
		if err := rebuildColumn(m.A, m.ACounts, c.s, c.a); err != nil {
			return fmt.Errorf("%w: likelihood column (%s, %s): %v", ErrInvalidModel, m.States[c.s], m.Actions[c.a], err)
		}
	}
	for c := range touchedB {
		if err := rebuildColumn(m.B, m.BCounts, c.s, c.a); err != nil {
			return fmt.Errorf("%w: transition column (%s, %s): %v", ErrInvalidModel, m.States[c.s], m.Actions[c.a], err)
		}
	}
	if prefTouched {
		for o, n := range m.CCounts {
			m.LogC[o] = math.Log(n + eps)
		}
	}

	return m.Normalize()
}

// #endregion learn

// #region helpers

func rebuildColumn(dst, counts [][][]float64, s, a int) error {
	sum, ok := columnSum(counts, s, a)
	if !ok {
		return fmt.Errorf("negative or non-finite counter")
	}
	if sum == 0 {
		return fmt.Errorf("counters sum to zero")
	}
	for r := range dst {
		dst[r][s][a] = counts[r][s][a] / sum
	}
	return nil
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

// #endregion helpers
