// Package world provides a small locked-room POMDP to run the agent against.
package world

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/mrlecko/macgyver-mud-sub001/internal/agent"
	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
	"github.com/mrlecko/macgyver-mud-sub001/internal/monitor"
)

// #region symbols

const (
	WeakLock   = "weak_lock"
	StrongLock = "strong_lock"
	Escaped    = "escaped"

	Inspect = "inspect"
	Pick    = "pick"
	Bash    = "bash"

	WeakHint    = "weak_hint"
	StrongHint  = "strong_hint"
	StillLocked = "still_locked"
	DoorOpen    = "door_open"
)

// EscapeReward is paid on the step the door opens.
const EscapeReward = 10.0

// #endregion symbols

// #region models

// DefaultModel is the agent's starting model of the room and the fallback
// when a stored model is absent or invalid.
func DefaultModel() *model.Model {
	m, err := model.New(roomParams(0.8, 0.8, 0.1))
	if err != nil {
		panic(fmt.Sprintf("default room model: %v", err))
	}
	return m
}

// TrueModel holds the room's actual dynamics. Its inspection is sharper and
// picking a weak lock more reliable than the agent initially believes.
func TrueModel() *model.Model {
	m, err := model.New(roomParams(0.9, 0.9, 0.05))
	if err != nil {
		panic(fmt.Sprintf("true room model: %v", err))
	}
	return m
}

// roomParams builds the room with the given inspection accuracy, chance that
// picking opens a weak lock, and chance that picking opens a strong one.
func roomParams(accuracy, pickWeak, pickStrong float64) model.Params {
	// action order: inspect, pick, bash; state order: weak, strong, escaped
	likelihood := [][][]float64{
		// weak_hint
		{{accuracy, 0, 0}, {1 - accuracy, 0, 0}, {0, 0, 0}},
		// strong_hint
		{{1 - accuracy, 0, 0}, {accuracy, 0, 0}, {0, 0, 0}},
		// still_locked
		{{0, 1, 1}, {0, 1, 1}, {0, 0, 0}},
		// door_open
		{{0, 0, 0}, {0, 0, 0}, {1, 1, 1}},
	}
	transition := [][][]float64{
		// -> weak_lock
		{{1, 1 - pickWeak, 0.5}, {0, 0, 0}, {0, 0, 0}},
		// -> strong_lock
		{{0, 0, 0}, {1, 1 - pickStrong, 0.3}, {0, 0, 0}},
		// -> escaped
		{{0, pickWeak, 0.5}, {0, pickStrong, 0.7}, {1, 1, 1}},
	}
	return model.Params{
		States:         []string{WeakLock, StrongLock, Escaped},
		Observations:   []string{WeakHint, StrongHint, StillLocked, DoorOpen},
		Actions:        []string{Inspect, Pick, Bash},
		Likelihood:     likelihood,
		Transition:     transition,
		LogPreferences: []float64{0, 0, -1, 3},
		Prior:          []float64{0.5, 0.5, 0},
		Costs:          []float64{0.1, 0.3, 0.6},
		Kinds:          []model.ActionKind{model.KindSense, model.KindAct, model.KindAct},
	}
}

// #endregion models

// #region room

// Room simulates the locked room by sampling from a model's tables.
// Quest subgoals are: identify the lock, then open the door.
type Room struct {
	truth *model.Model
	seed  uint64
	rng   *rand.Rand

	state          int
	episode        uint64
	subgoal        int
	stepsOnSubgoal int
}

// NewRoom creates a room driven by TrueModel. Episodes are reproducible for a
// given seed.
func NewRoom(seed uint64) *Room {
	return NewRoomWithModel(TrueModel(), seed)
}

// NewRoomWithModel creates a room that samples from truth.
func NewRoomWithModel(truth *model.Model, seed uint64) *Room {
	return &Room{truth: truth, seed: seed}
}

// Reset draws a hidden lock from the prior.
func (r *Room) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.rng = rand.New(rand.NewPCG(r.seed, r.episode))
	r.episode++
	r.state = sample(r.truth.D, r.rng.Float64())
	r.subgoal = 0
	r.stepsOnSubgoal = 0
	return nil
}

// Step applies action and samples the observation from the new state.
func (r *Room) Step(ctx context.Context, action string) (agent.StepResult, error) {
	if err := ctx.Err(); err != nil {
		return agent.StepResult{}, err
	}
	if r.rng == nil {
		return agent.StepResult{}, fmt.Errorf("room not reset")
	}
	a, err := r.truth.ActionIndex(action)
	if err != nil {
		return agent.StepResult{}, err
	}

	prev := r.state
	r.state = sample(column(r.truth.B, prev, a), r.rng.Float64())
	o := sample(column(r.truth.A, r.state, a), r.rng.Float64())
	obs := r.truth.Observations[o]

	reward := -r.truth.Costs[a]
	escaped := r.truth.States[r.state] == Escaped
	if escaped && r.truth.States[prev] != Escaped {
		reward = EscapeReward
	}

	r.stepsOnSubgoal++
	if r.subgoal == 0 && (obs == WeakHint || obs == StrongHint) {
		r.subgoal = 1
		r.stepsOnSubgoal = 0
	}
	if escaped && r.subgoal < 2 {
		r.subgoal = 2
		r.stepsOnSubgoal = 0
	}

	location := "door"
	if r.truth.Kinds[a] == model.KindSense {
		location = "lock"
	}

	return agent.StepResult{
		Observation: obs,
		Reward:      reward,
		Location:    location,
		Distance:    r.distance(),
		Done:        escaped,
		Quest: &monitor.QuestProgress{
			SubgoalIndex:   r.subgoal,
			StepsOnSubgoal: r.stepsOnSubgoal,
			TotalSubgoals:  2,
		},
	}, nil
}

// HiddenState returns the true state name.
func (r *Room) HiddenState() string {
	return r.truth.States[r.state]
}

// distance is a rough count of steps left: one pick for a weak lock, a few
// bashes for a strong one.
func (r *Room) distance() float64 {
	switch r.truth.States[r.state] {
	case WeakLock:
		return 1
	case StrongLock:
		return 2
	default:
		return 0
	}
}

// #endregion room

// #region sampling

func column(t [][][]float64, s, a int) []float64 {
	col := make([]float64, len(t))
	for r := range t {
		col[r] = t[r][s][a]
	}
	return col
}

// sample returns the index u falls into on the cumulative distribution p.
func sample(p []float64, u float64) int {
	var acc float64
	last := 0
	for i, v := range p {
		if v <= 0 {
			continue
		}
		acc += v
		last = i
		if u < acc {
			return i
		}
	}
	return last
}

// #endregion sampling
