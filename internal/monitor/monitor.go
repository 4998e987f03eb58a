package monitor

import (
	"github.com/mrlecko/macgyver-mud-sub001/internal/autotune"
)

// Metric names fed to the tuner.
const (
	MetricEntropy         = "entropy"
	MetricPredictionError = "prediction_error"
)

// #region config

// Config holds the static thresholds.
type Config struct {
	PanicEntropy    float64 `yaml:"panic_entropy"`
	ScarcityFactor  float64 `yaml:"scarcity_factor"`
	StepsPerSubgoal float64 `yaml:"steps_per_subgoal"`
	NoveltyError    float64 `yaml:"novelty_error"`
	HubrisEntropy   float64 `yaml:"hubris_entropy"`
	HubrisStreak    int     `yaml:"hubris_streak"`
	HubrisReward    float64 `yaml:"hubris_reward"`

	// Quest deadlock: at least DeadlockSteps on one subgoal with no positive
	// reward over the last DeadlockRewardWin steps.
	DeadlockSteps     int `yaml:"deadlock_steps"`
	DeadlockRewardWin int `yaml:"deadlock_reward_win"`

	// Escalation triggers.
	TerminalSteps      int    `yaml:"terminal_steps"`
	PanicEscalation    Window `yaml:"panic_escalation"`
	DeadlockEscalation Window `yaml:"deadlock_escalation"`

	HistorySize int `yaml:"history_size"`
}

// Window is "at least Count occurrences in the last Size history entries".
type Window struct {
	Count int `yaml:"count"`
	Size  int `yaml:"size"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		PanicEntropy:       0.45,
		ScarcityFactor:     1.2,
		StepsPerSubgoal:    2.5,
		NoveltyError:       2.0,
		HubrisEntropy:      0.1,
		HubrisStreak:       5,
		HubrisReward:       1.0,
		DeadlockSteps:      6,
		DeadlockRewardWin:  5,
		TerminalSteps:      2,
		PanicEscalation:    Window{Count: 3, Size: 5},
		DeadlockEscalation: Window{Count: 2, Size: 10},
		HistorySize:        20,
	}
}

// #endregion config

// #region rules

// signals is everything a rule predicate may read.
type signals struct {
	AgentState
	entropyAnomaly  bool
	errorAnomaly    bool
	subgoalAdvanced bool
}

type rule struct {
	state State
	test  func(c Config, s signals) bool
}

// rules is the raw trigger table in priority order; the first match wins.
var rules = []rule{
	{Scarcity, scarcity},
	{Panic, panicking},
	{Deadlock, deadlocked},
	{Novelty, novel},
	{Hubris, hubris},
}

func scarcity(c Config, s signals) bool {
	if s.Quest != nil {
		return float64(s.StepsRemaining) < c.ScarcityFactor*float64(s.Quest.Remaining())*c.StepsPerSubgoal
	}
	return float64(s.StepsRemaining) < s.Distance*c.ScarcityFactor
}

func panicking(c Config, s signals) bool {
	return s.Entropy > c.PanicEntropy || s.entropyAnomaly
}

func deadlocked(c Config, s signals) bool {
	if s.Quest != nil {
		if s.subgoalAdvanced || s.Quest.StepsOnSubgoal < c.DeadlockSteps {
			return false
		}
		var sum float64
		for _, r := range tail(s.Rewards, c.DeadlockRewardWin) {
			sum += r
		}
		return sum <= 0
	}
	loc := s.Locations
	n := len(loc)
	if n < 4 {
		return false
	}
	return loc[n-4] == loc[n-2] && loc[n-3] == loc[n-1] && loc[n-4] != loc[n-3]
}

func novel(c Config, s signals) bool {
	return s.PredictionError > c.NoveltyError || s.errorAnomaly
}

func hubris(c Config, s signals) bool {
	if s.Entropy >= c.HubrisEntropy || c.HubrisStreak <= 0 || len(s.Rewards) < c.HubrisStreak {
		return false
	}
	for _, r := range tail(s.Rewards, c.HubrisStreak) {
		if r < c.HubrisReward {
			return false
		}
	}
	return true
}

// #endregion rules

// #region monitor

// Monitor classifies each step and keeps a bounded history of raw results.
// It is owned by a single agent.
type Monitor struct {
	config      Config
	tuner       *autotune.Tuner
	history     []State
	lastSubgoal int
}

// New creates a monitor. A nil tuner gets one with default settings.
func New(config Config, tuner *autotune.Tuner) *Monitor {
	if tuner == nil {
		tuner = autotune.New(autotune.DefaultConfig())
	}
	return &Monitor{config: config, tuner: tuner, lastSubgoal: -1}
}

// Evaluate classifies s. Both anomaly checks always run so the tuner sees
// every step. The highest-priority raw trigger is appended to the history,
// and escalation is then checked against the updated history.
func (m *Monitor) Evaluate(s AgentState) State {
	sig := signals{
		AgentState:     s,
		entropyAnomaly: m.tuner.CheckAndObserve(MetricEntropy, s.Entropy),
		errorAnomaly:   m.tuner.CheckAndObserve(MetricPredictionError, s.PredictionError),
	}
	if s.Quest != nil {
		sig.subgoalAdvanced = s.Quest.SubgoalIndex != m.lastSubgoal
		m.lastSubgoal = s.Quest.SubgoalIndex
	}

	raw := Flow
	for _, r := range rules {
		if r.test(m.config, sig) {
			raw = r.state
			break
		}
	}

	m.history = append(m.history, raw)
	if size := m.config.HistorySize; size > 0 && len(m.history) > size {
		m.history = append(m.history[:0], m.history[len(m.history)-size:]...)
	}

	if m.escalate(s) {
		return Escalation
	}
	return raw
}

func (m *Monitor) escalate(s AgentState) bool {
	if s.StepsRemaining < m.config.TerminalSteps {
		return true
	}
	if m.count(Panic, m.config.PanicEscalation.Size) >= m.config.PanicEscalation.Count {
		return true
	}
	return m.count(Deadlock, m.config.DeadlockEscalation.Size) >= m.config.DeadlockEscalation.Count
}

func (m *Monitor) count(state State, window int) int {
	var n int
	for _, h := range tail(m.history, window) {
		if h == state {
			n++
		}
	}
	return n
}

// History returns a copy of the raw classification history, oldest first.
func (m *Monitor) History() []State {
	return append([]State(nil), m.history...)
}

// Tuner returns the tuner the monitor feeds.
func (m *Monitor) Tuner() *autotune.Tuner {
	return m.tuner
}

// Reset clears history and subgoal tracking. Tuner statistics are kept
// across episodes.
func (m *Monitor) Reset() {
	m.history = nil
	m.lastSubgoal = -1
}

// #endregion monitor

func tail[T any](s []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
