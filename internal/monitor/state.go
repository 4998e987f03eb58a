// Package monitor classifies the agent's situation into critical states and
// detects when the decision loop should escalate and halt.
package monitor

// #region critical-state

// State is a critical state. Higher values win.
type State int

const (
	Flow State = iota
	Hubris
	Novelty
	Deadlock
	Panic
	Scarcity
	Escalation
)

var stateNames = [...]string{
	Flow:       "FLOW",
	Hubris:     "HUBRIS",
	Novelty:    "NOVELTY",
	Deadlock:   "DEADLOCK",
	Panic:      "PANIC",
	Scarcity:   "SCARCITY",
	Escalation: "ESCALATION",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Outranks reports whether s has strictly higher priority than other.
func (s State) Outranks(other State) bool {
	return s > other
}

// ParseState maps a state name back to its value.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return Flow, false
}

// #endregion critical-state

// #region agent-state

// AgentState is the monitor's read-only view of one decision step.
type AgentState struct {
	Entropy         float64
	Locations       []string // recent locations, oldest first
	StepsRemaining  int
	Distance        float64   // estimated steps to goal
	Rewards         []float64 // recent rewards, oldest first
	PredictionError float64

	// Quest is nil for the basic variant. When set, SCARCITY and DEADLOCK
	// use subgoal progress instead of distance and location loops.
	Quest *QuestProgress
}

// QuestProgress is subgoal bookkeeping for quest-aware classification.
type QuestProgress struct {
	SubgoalIndex   int
	StepsOnSubgoal int
	TotalSubgoals  int
}

// Remaining returns the number of subgoals not yet completed.
func (q QuestProgress) Remaining() int {
	if r := q.TotalSubgoals - q.SubgoalIndex; r > 0 {
		return r
	}
	return 0
}

// #endregion agent-state
