package agent

// #region imports
import (
	"context"

	"github.com/mrlecko/macgyver-mud-sub001/internal/autotune"
	"github.com/mrlecko/macgyver-mud-sub001/internal/learning"
	"github.com/mrlecko/macgyver-mud-sub001/internal/monitor"
	"github.com/mrlecko/macgyver-mud-sub001/internal/policy"
	"github.com/mrlecko/macgyver-mud-sub001/internal/skills"
	"github.com/mrlecko/macgyver-mud-sub001/internal/stability"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
)

// #endregion

// #region environment

// StepResult is the environment's response to one action.
type StepResult struct {
	Observation string
	Reward      float64
	Location    string
	Distance    float64 // estimated steps to goal
	Done        bool

	// Quest is nil for environments without subgoals.
	Quest *monitor.QuestProgress
}

// Environment is the world an agent acts in.
type Environment interface {
	Reset(ctx context.Context) error
	Step(ctx context.Context, action string) (StepResult, error)
}

// #endregion

// #region collaborators

// StepSink receives the decision trace. *store.Store satisfies it.
type StepSink interface {
	StartEpisode(agentID string) (string, error)
	LogStep(rec store.StepRecord) error
	EndEpisode(rec store.EpisodeRecord) error
}

// SkillMemory supplies selection priors and records action outcomes.
// *skills.Memory satisfies it.
type SkillMemory interface {
	Priors(agentID string) (policy.SkillPriors, error)
	RecordOutcome(o skills.Outcome) error
}

// #endregion

// #region halt-reason

// HaltReason says why an episode stopped.
type HaltReason string

const (
	HaltDone       HaltReason = "done"
	HaltBudget     HaltReason = "budget"
	HaltEscalation HaltReason = "escalation"
	HaltCanceled   HaltReason = "canceled"
)

// #endregion

// #region config

// Config bundles the settings of every component a Runner owns.
type Config struct {
	AgentID   string                 `yaml:"agent_id"`
	MaxSteps  int                    `yaml:"max_steps"`
	Recent    int                    `yaml:"recent"` // locations and rewards shown to the monitor
	Evaluator policy.EvaluatorConfig `yaml:"policy"`
	Selector  policy.SelectorConfig  `yaml:"selector"`
	Learning  learning.Config        `yaml:"learning"`
	Monitor   monitor.Config         `yaml:"monitor"`
	Tuner     autotune.Config        `yaml:"tuner"`
	Stability stability.Config       `yaml:"stability"`
}

// DefaultConfig returns the standard agent settings.
func DefaultConfig() Config {
	return Config{
		AgentID:   "default",
		MaxSteps:  20,
		Recent:    10,
		Evaluator: policy.DefaultEvaluatorConfig(),
		Selector:  policy.DefaultSelectorConfig(),
		Learning:  learning.DefaultConfig(),
		Monitor:   monitor.DefaultConfig(),
		Tuner:     autotune.DefaultConfig(),
		Stability: stability.DefaultConfig(),
	}
}

// #endregion

// #region results

// StepTrace is one decision step as the runner saw it.
type StepTrace struct {
	Step            int
	Action          string
	Observation     string
	Reward          float64
	EFE             float64
	Entropy         float64 // after the update
	PredictionError float64
	State           monitor.State
	V               float64
}

// EpisodeResult summarizes one episode.
type EpisodeResult struct {
	EpisodeID   string // empty without a sink
	Steps       int
	TotalReward float64
	Done        bool
	Halt        HaltReason
	FinalState  monitor.State
	Trend       float64
	RolledBack  bool // learning produced an invalid model and was undone
	Trace       []StepTrace
}

// #endregion
