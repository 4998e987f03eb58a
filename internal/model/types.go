package model

import "errors"

// #region errors

// ErrInvalidModel marks a generative model whose tables violate the
// probability invariants. Callers are expected to fall back to a known-good model.
var ErrInvalidModel = errors.New("invalid model")

// ErrUnknownSymbol marks a state, observation or action name that the model does not define.
var ErrUnknownSymbol = errors.New("unknown symbol")

// #endregion errors

// #region action-kind

// ActionKind tags an action as information-gathering or world-changing.
type ActionKind string

const (
	KindNone  ActionKind = ""
	KindSense ActionKind = "sense"
	KindAct   ActionKind = "act"
)

// #endregion action-kind

// #region params

// Params carries the raw tables a Model is built from.
//
// Likelihood is indexed [observation][state][action] and Transition is indexed
// [next][state][action]; every (state, action) column is normalized by New.
type Params struct {
	States       []string
	Observations []string
	Actions      []string

	Likelihood     [][][]float64
	Transition     [][][]float64
	LogPreferences []float64
	Prior          []float64

	Costs []float64    // per action; nil = zero cost
	Kinds []ActionKind // per action; nil = untagged

	// Learning counters. Nil tables are initialized by New.
	LikelihoodCounts [][][]float64
	TransitionCounts [][][]float64
	PreferenceCounts []float64
}

// #endregion params

// #region model

// Model is a discrete POMDP generative model with Dirichlet-style learning counters.
// A Model is owned by a single agent; it is not safe for concurrent mutation.
type Model struct {
	States       []string
	Observations []string
	Actions      []string

	A    [][][]float64 // P(o | s, a), [o][s][a]
	B    [][][]float64 // P(s' | s, a), [s'][s][a]
	LogC []float64     // log-preferences over observations
	C    []float64     // softmax(LogC)
	D    []float64     // prior over states

	Costs []float64
	Kinds []ActionKind

	ACounts [][][]float64
	BCounts [][][]float64
	CCounts []float64

	stateIdx  map[string]int
	obsIdx    map[string]int
	actionIdx map[string]int
}

// #endregion model

// #region learning-batch

// Table selects which parameter set an Increment targets.
type Table int

const (
	TableLikelihood Table = iota
	TableTransition
	TablePreference
)

// Increment adds Amount to one learning counter.
// Row is the observation index (likelihood, preference) or next-state index (transition).
// State and Action are ignored for TablePreference.
type Increment struct {
	Table  Table
	Row    int
	State  int
	Action int
	Amount float64
}

// #endregion learning-batch
