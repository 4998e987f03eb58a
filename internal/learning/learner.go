// Package learning updates a generative model's Dirichlet counters from
// observed outcomes.
package learning

import (
	"fmt"

	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
)

// #region config

// Config controls online learning.
type Config struct {
	Rate    float64 `yaml:"rate"`     // counter increment per observed transition
	Epsilon float64 `yaml:"epsilon"`  // added before log when rebuilding preferences
	PerStep bool    `yaml:"per_step"` // learn after every step instead of once per episode
}

// DefaultConfig returns the standard learning settings.
func DefaultConfig() Config {
	return Config{
		Rate:    1.0,
		Epsilon: 1e-6,
		PerStep: false,
	}
}

// #endregion config

// #region types

// Transition is one observed (state, action, observation, next state) tuple.
// A positive Reward also counts the observation as preferred.
type Transition struct {
	State       string
	Action      string
	Observation string
	NextState   string
	Reward      float64
}

// Learner applies counter updates to a single model.
type Learner struct {
	m      *model.Model
	config Config
}

// New creates a learner for m.
func New(m *model.Model, config Config) *Learner {
	return &Learner{m: m, config: config}
}

// Config returns the learner's configuration.
func (l *Learner) Config() Config {
	return l.config
}

// #endregion types

// #region single-step

// UpdateLikelihoods adds rate to the (observation, state, action) counter and
// rebuilds that likelihood column.
func (l *Learner) UpdateLikelihoods(action, state, observation string, rate float64) error {
	inc, err := l.likelihood(action, state, observation, rate)
	if err != nil {
		return err
	}
	return l.m.Learn([]model.Increment{inc}, l.config.Epsilon)
}

// UpdateTransitions adds rate to the (next, state, action) counter and
// rebuilds that transition column.
func (l *Learner) UpdateTransitions(action, state, next string, rate float64) error {
	inc, err := l.transition(action, state, next, rate)
	if err != nil {
		return err
	}
	return l.m.Learn([]model.Increment{inc}, l.config.Epsilon)
}

// UpdatePreferences adds rate to observation's preference counter and
// recomputes log-preferences as log(counts + epsilon).
func (l *Learner) UpdatePreferences(observation string, rate float64) error {
	inc, err := l.preference(observation, rate)
	if err != nil {
		return err
	}
	return l.m.Learn([]model.Increment{inc}, l.config.Epsilon)
}

// #endregion single-step

// #region batch

// UpdateFromEpisode applies every transition as one learning batch. The
// observation is credited to the next state, since it is emitted after the
// action takes effect. The model is renormalized once at the end; an invalid
// symbol anywhere rejects the whole batch without touching the model.
func (l *Learner) UpdateFromEpisode(transitions []Transition, rate float64) error {
	batch := make([]model.Increment, 0, len(transitions)*3)
	for i, tr := range transitions {
		lk, err := l.likelihood(tr.Action, tr.NextState, tr.Observation, rate)
		if err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
		tx, err := l.transition(tr.Action, tr.State, tr.NextState, rate)
		if err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
		batch = append(batch, lk, tx)
		if tr.Reward > 0 {
			pref, err := l.preference(tr.Observation, rate)
			if err != nil {
				return fmt.Errorf("transition %d: %w", i, err)
			}
			batch = append(batch, pref)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return l.m.Learn(batch, l.config.Epsilon)
}

// #endregion batch

// #region increments

func (l *Learner) likelihood(action, state, observation string, rate float64) (model.Increment, error) {
	a, err := l.m.ActionIndex(action)
	if err != nil {
		return model.Increment{}, err
	}
	s, err := l.m.StateIndex(state)
	if err != nil {
		return model.Increment{}, err
	}
	o, err := l.m.ObservationIndex(observation)
	if err != nil {
		return model.Increment{}, err
	}
	return model.Increment{Table: model.TableLikelihood, Row: o, State: s, Action: a, Amount: rate}, nil
}

func (l *Learner) transition(action, state, next string, rate float64) (model.Increment, error) {
	a, err := l.m.ActionIndex(action)
	if err != nil {
		return model.Increment{}, err
	}
	s, err := l.m.StateIndex(state)
	if err != nil {
		return model.Increment{}, err
	}
	n, err := l.m.StateIndex(next)
	if err != nil {
		return model.Increment{}, err
	}
	return model.Increment{Table: model.TableTransition, Row: n, State: s, Action: a, Amount: rate}, nil
}

func (l *Learner) preference(observation string, rate float64) (model.Increment, error) {
	o, err := l.m.ObservationIndex(observation)
	if err != nil {
		return model.Increment{}, err
	}
	return model.Increment{Table: model.TablePreference, Row: o, Amount: rate}, nil
}

// #endregion increments
