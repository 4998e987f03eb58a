// Package replay records episodes as fixtures and replays them against a
// model to check that the agent still makes the same decisions.
package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlecko/macgyver-mud-sub001/internal/agent"
	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
)

// ErrScriptExhausted is returned when the agent asks for more steps than
// the fixture holds.
var ErrScriptExhausted = errors.New("replay: script exhausted")

// #region recorder

// Recorder wraps an environment and keeps every step of the current
// episode so it can be written out as a fixture.
type Recorder struct {
	env   agent.Environment
	steps []FixtureStep
}

// NewRecorder wraps env.
func NewRecorder(env agent.Environment) *Recorder {
	return &Recorder{env: env}
}

func (r *Recorder) Reset(ctx context.Context) error {
	r.steps = nil
	return r.env.Reset(ctx)
}

func (r *Recorder) Step(ctx context.Context, action string) (agent.StepResult, error) {
	res, err := r.env.Step(ctx, action)
	if err != nil {
		return res, err
	}
	r.steps = append(r.steps, fromStepResult(action, res))
	return res, nil
}

// Fixture returns the episode recorded since the last Reset.
func (r *Recorder) Fixture(agentID, description string) *Fixture {
	steps := make([]FixtureStep, len(r.steps))
	copy(steps, r.steps)
	return &Fixture{Description: description, AgentID: agentID, Steps: steps}
}

// #endregion recorder

// #region script

// Script plays back a fixture's environment responses regardless of the
// action taken.
type Script struct {
	steps []FixtureStep
	pos   int
}

// NewScript builds a scripted environment over steps.
func NewScript(steps []FixtureStep) *Script {
	return &Script{steps: steps}
}

func (s *Script) Reset(context.Context) error {
	s.pos = 0
	return nil
}

func (s *Script) Step(_ context.Context, _ string) (agent.StepResult, error) {
	if s.pos >= len(s.steps) {
		return agent.StepResult{}, ErrScriptExhausted
	}
	res := s.steps[s.pos].ToStepResult()
	s.pos++
	return res, nil
}

// #endregion script

// #region types

// Result compares one replayed decision with the recorded one.
type Result struct {
	Step     int    `json:"step"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
	Match    bool   `json:"match"`
	State    string `json:"state"`
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps int              `json:"total_steps"` // steps in the fixture
	Played     int              `json:"played"`      // steps the agent took before halting
	Matches    int              `json:"matches"`
	Mismatches int              `json:"mismatches"`
	Halt       agent.HaltReason `json:"halt"`
	Overran    bool             `json:"overran"` // the agent kept going after the last recorded step
}

// OK reports whether every fixture step was played with the recorded action.
func (s Summary) OK() bool {
	return s.Played == s.TotalSteps && s.Mismatches == 0 && !s.Overran
}

// #endregion types

// #region replay

// Replay runs one episode of f against a copy of m; learning never touches
// m. config should match the recorded run, since the step budget feeds the
// monitor. Without a sink or skill memory the run is deterministic.
func Replay(ctx context.Context, m *model.Model, config agent.Config, f *Fixture) ([]Result, Summary, error) {
	if config.MaxSteps < len(f.Steps) {
		config.MaxSteps = len(f.Steps)
	}
	runner := agent.NewRunner(m.Clone(), config, agent.Options{})

	res, err := runner.RunEpisode(ctx, NewScript(f.Steps))
	overran := errors.Is(err, ErrScriptExhausted)
	if err != nil && !overran {
		return nil, Summary{}, fmt.Errorf("replay: %w", err)
	}

	results := make([]Result, len(res.Trace))
	for i, tr := range res.Trace {
		want := f.Steps[i].ExpectedAction
		results[i] = Result{
			Step:     tr.Step,
			Expected: want,
			Got:      tr.Action,
			Match:    tr.Action == want,
			State:    tr.State.String(),
		}
	}
	sum := Summarize(results, len(f.Steps), res.Halt)
	sum.Overran = overran
	return results, sum, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, totalSteps int, halt agent.HaltReason) Summary {
	s := Summary{TotalSteps: totalSteps, Played: len(results), Halt: halt}
	for _, r := range results {
		if r.Match {
			s.Matches++
		} else {
			s.Mismatches++
		}
	}
	return s
}

// #endregion replay
