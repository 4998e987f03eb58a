package policy

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mrlecko/macgyver-mud-sub001/internal/belief"
)

// #region search

// Search runs beam search when the configuration names a beam width and
// exhaustive search otherwise.
func (e *Evaluator) Search(b belief.Belief) ([]Scored, error) {
	if e.config.BeamWidth > 0 {
		return e.Beam(b, e.config.Depth, e.config.BeamWidth)
	}
	return e.Exhaustive(b, e.config.Depth)
}

// #endregion search

// #region exhaustive

// Exhaustive scores every action sequence of length depth, enumerated in
// action-index order. When MaxNodes is set, enumeration stops after that many
// complete policies. Results are sorted by ascending EFE; ties keep enumeration order.
func (e *Evaluator) Exhaustive(b belief.Belief, depth int) ([]Scored, error) {
	if depth < 1 {
		return nil, fmt.Errorf("depth must be >= 1, got %d", depth)
	}
	limit := e.config.MaxNodes

	var out []Scored
	var walk func(n node) bool
	walk = func(n node) bool {
		if len(n.actions) == depth {
			out = append(out, n.scored(e.m))
			return limit <= 0 || len(out) < limit
		}
		for a := range e.m.Actions {
			if !walk(e.extend(n, a)) {
				return false
			}
		}
		return true
	}
	walk(node{b: b})

	sortScored(out)
	return out, nil
}

// #endregion exhaustive

// #region beam

// Beam expands every surviving prefix by every action for depth rounds,
// keeping only the width lowest-EFE prefixes after each round. Cost is bounded
// by width × |actions| × depth instead of |actions|^depth.
func (e *Evaluator) Beam(b belief.Belief, depth, width int) ([]Scored, error) {
	if depth < 1 {
		return nil, fmt.Errorf("depth must be >= 1, got %d", depth)
	}
	if width < 1 {
		return nil, fmt.Errorf("beam width must be >= 1, got %d", width)
	}

	frontier := []node{{b: b}}
	for d := 0; d < depth; d++ {
		candidates := make([]node, 0, len(frontier)*len(e.m.Actions))
		for _, n := range frontier {
			for a := range e.m.Actions {
				candidates = append(candidates, e.extend(n, a))
			}
		}
		slices.SortStableFunc(candidates, func(x, y node) int {
			return cmp.Compare(x.total.EFE, y.total.EFE)
		})
		if len(candidates) > width {
			candidates = candidates[:width]
		}
		frontier = candidates
	}

	out := make([]Scored, len(frontier))
	for i, n := range frontier {
		out[i] = n.scored(e.m)
	}
	return out, nil
}

// #endregion beam

func sortScored(s []Scored) {
	slices.SortStableFunc(s, func(x, y Scored) int {
		return cmp.Compare(x.EFE, y.EFE)
	})
}
