// Package agent runs the perceive-plan-act loop that ties the generative
// model, planner, learner and supervisors together.
package agent

// #region imports
import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlecko/macgyver-mud-sub001/internal/autotune"
	"github.com/mrlecko/macgyver-mud-sub001/internal/belief"
	"github.com/mrlecko/macgyver-mud-sub001/internal/learning"
	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
	"github.com/mrlecko/macgyver-mud-sub001/internal/monitor"
	"github.com/mrlecko/macgyver-mud-sub001/internal/policy"
	"github.com/mrlecko/macgyver-mud-sub001/internal/skills"
	"github.com/mrlecko/macgyver-mud-sub001/internal/stability"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
)

// #endregion

// #region runner-struct

// Options are the runner's optional collaborators. Every field may be nil.
type Options struct {
	Sink       StepSink
	Skills     SkillMemory
	TieBreaker policy.TieBreaker
	Tuner      *autotune.Tuner
	Logger     *zap.Logger
}

// Runner owns one model and one set of supervisors. It is not safe for
// concurrent use; give each agent its own Runner.
type Runner struct {
	m         *model.Model
	config    Config
	evaluator *policy.Evaluator
	selector  *policy.Selector
	learner   *learning.Learner
	monitor   *monitor.Monitor
	stability *stability.Monitor
	sink      StepSink
	skills    SkillMemory
	logger    *zap.Logger
}

// #endregion

// #region constructor

// NewRunner wires a runner around m. The runner mutates m as it learns.
func NewRunner(m *model.Model, config Config, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tuner := opts.Tuner
	if tuner == nil {
		tuner = autotune.New(config.Tuner)
	}
	return &Runner{
		m:         m,
		config:    config,
		evaluator: policy.NewEvaluator(m, config.Evaluator),
		selector:  policy.NewSelector(config.Selector, opts.TieBreaker),
		learner:   learning.New(m, config.Learning),
		monitor:   monitor.New(config.Monitor, tuner),
		stability: stability.New(config.Stability),
		sink:      opts.Sink,
		skills:    opts.Skills,
		logger:    logger.With(zap.String("agent", config.AgentID)),
	}
}

// Model returns the model the runner plans with and learns into.
func (r *Runner) Model() *model.Model {
	return r.m
}

// Tuner returns the tuner shared by the runner's monitor.
func (r *Runner) Tuner() *autotune.Tuner {
	return r.monitor.Tuner()
}

// #endregion

// #region run-episode

// RunEpisode plays one episode against env. It halts when the environment
// reports done, the step budget runs out, the monitor escalates, or ctx is
// canceled. Learning is applied per step or once at the end, then the model
// is validated; an invalid model is rolled back to its pre-episode snapshot.
func (r *Runner) RunEpisode(ctx context.Context, env Environment) (EpisodeResult, error) {
	if err := env.Reset(ctx); err != nil {
		return EpisodeResult{}, fmt.Errorf("reset environment: %w", err)
	}
	r.monitor.Reset()
	r.stability.Reset()

	snapshot := r.m.Clone()
	res := EpisodeResult{Halt: HaltBudget, EpisodeID: r.startEpisode()}
	priors := r.priors()

	var (
		locations   []string
		rewards     []float64
		transitions []learning.Transition
		learnErr    error
	)
	b := belief.Prior(r.m)

	for step := 0; step < r.config.MaxSteps; step++ {
		if ctx.Err() != nil {
			res.Halt = HaltCanceled
			break
		}

		// plan
		ranked, err := r.evaluator.Search(b)
		if err != nil {
			return res, fmt.Errorf("step %d: search: %w", step, err)
		}
		sel, err := r.selector.Select(ranked, belief.Entropy(b), priors)
		if err != nil {
			return res, fmt.Errorf("step %d: select: %w", step, err)
		}
		a, err := r.m.ActionIndex(sel.Action)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}
		predObs := belief.PredictObservations(r.m, belief.PredictState(r.m, b, a), a)

		// act
		out, err := env.Step(ctx, sel.Action)
		if err != nil {
			return res, fmt.Errorf("step %d: environment: %w", step, err)
		}
		o, err := r.m.ObservationIndex(out.Observation)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}

		// perceive
		surprise := belief.Surprise(predObs, o)
		post := belief.Update(r.m, b, a, o)
		tr := learning.Transition{
			State:       r.m.States[belief.MAP(b)],
			Action:      sel.Action,
			Observation: out.Observation,
			NextState:   r.m.States[belief.MAP(post)],
			Reward:      out.Reward,
		}
		if r.config.Learning.PerStep {
			if learnErr == nil {
				learnErr = r.learner.UpdateFromEpisode([]learning.Transition{tr}, r.config.Learning.Rate)
			}
		} else {
			transitions = append(transitions, tr)
		}

		// supervise
		locations = appendRecent(locations, out.Location, r.config.Recent)
		rewards = appendRecent(rewards, out.Reward, r.config.Recent)
		entropy := belief.Entropy(post)
		state := r.monitor.Evaluate(monitor.AgentState{
			Entropy:         entropy,
			Locations:       locations,
			StepsRemaining:  r.config.MaxSteps - step - 1,
			Distance:        out.Distance,
			Rewards:         rewards,
			PredictionError: surprise,
			Quest:           out.Quest,
		})
		stress := 0.0
		if state != monitor.Flow {
			stress = 1
		}
		v := r.stability.Update(entropy, out.Distance, stress)

		trace := StepTrace{
			Step:            step,
			Action:          sel.Action,
			Observation:     out.Observation,
			Reward:          out.Reward,
			EFE:             sel.Ranked[0].EFE,
			Entropy:         entropy,
			PredictionError: surprise,
			State:           state,
			V:               v,
		}
		res.Trace = append(res.Trace, trace)
		r.logStep(res.EpisodeID, trace, b[0], post[0])
		r.recordSkill(sel.Action, out.Reward)

		r.logger.Debug("step",
			zap.Int("step", step),
			zap.String("action", sel.Action),
			zap.String("observation", out.Observation),
			zap.Float64("entropy", entropy),
			zap.Float64("surprise", surprise),
			zap.Stringer("state", state),
		)

		b = post
		res.Steps++
		res.TotalReward += out.Reward
		res.FinalState = state

		if out.Done {
			res.Done = true
			res.Halt = HaltDone
			break
		}
		if state == monitor.Escalation {
			res.Halt = HaltEscalation
			break
		}
	}

	// learn
	if !r.config.Learning.PerStep && len(transitions) > 0 {
		learnErr = r.learner.UpdateFromEpisode(transitions, r.config.Learning.Rate)
	}
	if learnErr == nil {
		learnErr = r.m.Validate()
	}
	if learnErr != nil {
		if !errors.Is(learnErr, model.ErrInvalidModel) {
			return res, fmt.Errorf("learn: %w", learnErr)
		}
		*r.m = *snapshot
		res.RolledBack = true
		r.logger.Warn("learning produced an invalid model, rolled back", zap.Error(learnErr))
	}

	res.Trend = r.stability.Trend()
	r.endEpisode(res)

	r.logger.Info("episode finished",
		zap.String("episode", res.EpisodeID),
		zap.Int("steps", res.Steps),
		zap.Float64("reward", res.TotalReward),
		zap.String("halt", string(res.Halt)),
		zap.Stringer("final_state", res.FinalState),
		zap.Float64("trend", res.Trend),
		zap.Bool("rolled_back", res.RolledBack),
	)
	return res, nil
}

// #endregion

// #region collaborators

// Sink and skill-memory failures are logged and never change a decision.

func (r *Runner) startEpisode() string {
	if r.sink == nil {
		return ""
	}
	id, err := r.sink.StartEpisode(r.config.AgentID)
	if err != nil {
		r.logger.Warn("start episode", zap.Error(err))
		return ""
	}
	return id
}

func (r *Runner) logStep(episodeID string, tr StepTrace, before, after float64) {
	if r.sink == nil || episodeID == "" {
		return
	}
	err := r.sink.LogStep(store.StepRecord{
		EpisodeID:       episodeID,
		Step:            tr.Step,
		Action:          tr.Action,
		Observation:     tr.Observation,
		Reward:          tr.Reward,
		ReferenceBefore: before,
		ReferenceAfter:  after,
		Entropy:         tr.Entropy,
		EFE:             tr.EFE,
		CriticalState:   tr.State.String(),
	})
	if err != nil {
		r.logger.Warn("log step", zap.Int("step", tr.Step), zap.Error(err))
	}
}

func (r *Runner) endEpisode(res EpisodeResult) {
	if r.sink == nil || res.EpisodeID == "" {
		return
	}
	outcome := "failure"
	if res.Done {
		outcome = "success"
	}
	err := r.sink.EndEpisode(store.EpisodeRecord{
		EpisodeID:   res.EpisodeID,
		AgentID:     r.config.AgentID,
		Steps:       res.Steps,
		TotalReward: res.TotalReward,
		Outcome:     outcome,
		HaltReason:  string(res.Halt),
	})
	if err != nil {
		r.logger.Warn("end episode", zap.Error(err))
	}
}

func (r *Runner) priors() policy.SkillPriors {
	if r.skills == nil {
		return nil
	}
	priors, err := r.skills.Priors(r.config.AgentID)
	if err != nil {
		r.logger.Warn("load skill priors", zap.Error(err))
		return nil
	}
	return priors
}

func (r *Runner) recordSkill(action string, reward float64) {
	if r.skills == nil {
		return
	}
	err := r.skills.RecordOutcome(skills.Outcome{
		AgentID: r.config.AgentID,
		Action:  action,
		Success: reward > 0,
		Reward:  reward,
	})
	if err != nil {
		r.logger.Warn("record skill outcome", zap.String("action", action), zap.Error(err))
	}
}

// #endregion

func appendRecent[T any](s []T, v T, n int) []T {
	s = append(s, v)
	if n > 0 && len(s) > n {
		s = append(s[:0], s[len(s)-n:]...)
	}
	return s
}
