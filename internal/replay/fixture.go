package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mrlecko/macgyver-mud-sub001/internal/agent"
	"github.com/mrlecko/macgyver-mud-sub001/internal/monitor"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
)

// #region fixture-types

// Fixture is a recorded episode: what the environment said at each step
// and which action the agent took in response.
type Fixture struct {
	Description string        `json:"description"`
	AgentID     string        `json:"agent_id"`
	EpisodeID   string        `json:"episode_id,omitempty"`
	Steps       []FixtureStep `json:"steps"`
}

// FixtureStep is one environment response and the action that produced it.
type FixtureStep struct {
	ExpectedAction string        `json:"expected_action"`
	Observation    string        `json:"observation"`
	Reward         float64       `json:"reward"`
	Location       string        `json:"location,omitempty"`
	Distance       float64       `json:"distance"`
	Done           bool          `json:"done,omitempty"`
	Quest          *FixtureQuest `json:"quest,omitempty"`
}

// FixtureQuest mirrors monitor.QuestProgress with JSON tags.
type FixtureQuest struct {
	SubgoalIndex   int `json:"subgoal_index"`
	StepsOnSubgoal int `json:"steps_on_subgoal"`
	TotalSubgoals  int `json:"total_subgoals"`
}

// #endregion fixture-types

// #region fixture-io

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("fixture %s has no steps", path)
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-io

// #region conversions

// FromEpisode builds a fixture from a logged episode. The step log keeps no
// location, distance or quest progress, so a replay of an exported fixture
// can supervise differently from the original run; actions are unaffected.
func FromEpisode(ep store.EpisodeRecord, steps []store.StepRecord) *Fixture {
	f := &Fixture{
		Description: fmt.Sprintf("episode %s exported from the step log", ep.EpisodeID),
		AgentID:     ep.AgentID,
		EpisodeID:   ep.EpisodeID,
		Steps:       make([]FixtureStep, len(steps)),
	}
	for i, s := range steps {
		f.Steps[i] = FixtureStep{
			ExpectedAction: s.Action,
			Observation:    s.Observation,
			Reward:         s.Reward,
		}
	}
	if n := len(f.Steps); n > 0 && ep.Outcome == "success" {
		f.Steps[n-1].Done = true
	}
	return f
}

// ToStepResult converts a fixture step to the environment's response.
func (fs *FixtureStep) ToStepResult() agent.StepResult {
	res := agent.StepResult{
		Observation: fs.Observation,
		Reward:      fs.Reward,
		Location:    fs.Location,
		Distance:    fs.Distance,
		Done:        fs.Done,
	}
	if fs.Quest != nil {
		res.Quest = &monitor.QuestProgress{
			SubgoalIndex:   fs.Quest.SubgoalIndex,
			StepsOnSubgoal: fs.Quest.StepsOnSubgoal,
			TotalSubgoals:  fs.Quest.TotalSubgoals,
		}
	}
	return res
}

func fromStepResult(action string, res agent.StepResult) FixtureStep {
	fs := FixtureStep{
		ExpectedAction: action,
		Observation:    res.Observation,
		Reward:         res.Reward,
		Location:       res.Location,
		Distance:       res.Distance,
		Done:           res.Done,
	}
	if q := res.Quest; q != nil {
		fs.Quest = &FixtureQuest{
			SubgoalIndex:   q.SubgoalIndex,
			StepsOnSubgoal: q.StepsOnSubgoal,
			TotalSubgoals:  q.TotalSubgoals,
		}
	}
	return fs
}

// #endregion conversions
