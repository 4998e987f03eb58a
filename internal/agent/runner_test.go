package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
	"github.com/mrlecko/macgyver-mud-sub001/internal/monitor"
	"github.com/mrlecko/macgyver-mud-sub001/internal/policy"
	"github.com/mrlecko/macgyver-mud-sub001/internal/skills"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region fakes

func testModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.New(model.Params{
		States:       []string{"left", "right"},
		Observations: []string{"see_left", "see_right"},
		Actions:      []string{"look", "poke"},
		Likelihood: [][][]float64{
			{{1, 0.5}, {0, 0.5}},
			{{0, 0.5}, {1, 0.5}},
		},
		Transition: [][][]float64{
			{{1, 1}, {0, 0}},
			{{0, 0}, {1, 1}},
		},
		LogPreferences: []float64{0, 0},
		Prior:          []float64{0.5, 0.5},
		Kinds:          []model.ActionKind{model.KindSense, model.KindAct},
	})
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	return m
}

type fakeEnv struct {
	doneAt  int // 0 = never
	steps   int
	onStep  func(step int)
	actions []string
}

func (e *fakeEnv) Reset(context.Context) error {
	e.steps = 0
	e.actions = nil
	return nil
}

func (e *fakeEnv) Step(_ context.Context, action string) (StepResult, error) {
	e.steps++
	e.actions = append(e.actions, action)
	if e.onStep != nil {
		e.onStep(e.steps)
	}
	return StepResult{
		Observation: "see_left",
		Location:    "room",
		Distance:    1,
		Done:        e.doneAt > 0 && e.steps >= e.doneAt,
	}, nil
}

type fakeSink struct {
	started int
	steps   []store.StepRecord
	ended   []store.EpisodeRecord
	fail    bool
}

func (s *fakeSink) StartEpisode(string) (string, error) {
	s.started++
	if s.fail {
		return "", errors.New("sink down")
	}
	return "ep-1", nil
}

func (s *fakeSink) LogStep(rec store.StepRecord) error {
	s.steps = append(s.steps, rec)
	return nil
}

func (s *fakeSink) EndEpisode(rec store.EpisodeRecord) error {
	s.ended = append(s.ended, rec)
	return nil
}

type fakeSkills struct {
	priors   policy.SkillPriors
	outcomes []skills.Outcome
}

func (f *fakeSkills) Priors(string) (policy.SkillPriors, error) { return f.priors, nil }

func (f *fakeSkills) RecordOutcome(o skills.Outcome) error {
	f.outcomes = append(f.outcomes, o)
	return nil
}

func quietConfig(maxSteps int) Config {
	cfg := DefaultConfig()
	cfg.MaxSteps = maxSteps
	cfg.Monitor.TerminalSteps = 0
	cfg.Monitor.PanicEscalation = monitor.Window{Count: 100, Size: 5}
	cfg.Monitor.DeadlockEscalation = monitor.Window{Count: 100, Size: 10}
	return cfg
}

// #endregion fakes

func TestRunEpisodeHaltsOnDone(t *testing.T) {
	r := NewRunner(testModel(t), quietConfig(10), Options{})
	res, err := r.RunEpisode(context.Background(), &fakeEnv{doneAt: 3})
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	if res.Steps != 3 || !res.Done || res.Halt != HaltDone {
		t.Errorf("expected done after 3 steps, got %+v", res)
	}
	if len(res.Trace) != 3 {
		t.Errorf("expected 3 trace entries, got %d", len(res.Trace))
	}
}

func TestRunEpisodeHaltsOnBudget(t *testing.T) {
	r := NewRunner(testModel(t), quietConfig(5), Options{})
	res, err := r.RunEpisode(context.Background(), &fakeEnv{})
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	if res.Steps != 5 || res.Halt != HaltBudget || res.Done {
		t.Errorf("expected budget halt after 5 steps, got %+v", res)
	}
}

func TestRunEpisodeHaltsOnEscalation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = 20
	r := NewRunner(testModel(t), cfg, Options{})
	res, err := r.RunEpisode(context.Background(), &fakeEnv{})
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	if res.Halt != HaltEscalation || res.FinalState != monitor.Escalation {
		t.Errorf("expected escalation halt, got halt=%s state=%s", res.Halt, res.FinalState)
	}
	if res.Steps >= cfg.MaxSteps {
		t.Errorf("expected escalation before the budget ran out, got %d steps", res.Steps)
	}
}

func TestRunEpisodeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(testModel(t), quietConfig(5), Options{})
	res, err := r.RunEpisode(ctx, &fakeEnv{})
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	if res.Steps != 0 || res.Halt != HaltCanceled {
		t.Errorf("expected immediate cancel, got %+v", res)
	}
}

func TestSinkDoesNotChangeDecisions(t *testing.T) {
	base := testModel(t)

	plain := NewRunner(base.Clone(), quietConfig(6), Options{})
	want, err := plain.RunEpisode(context.Background(), &fakeEnv{})
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}

	for _, sink := range []*fakeSink{{}, {fail: true}} {
		r := NewRunner(base.Clone(), quietConfig(6), Options{Sink: sink})
		got, err := r.RunEpisode(context.Background(), &fakeEnv{})
		if err != nil {
			t.Fatalf("RunEpisode: %v", err)
		}
		if diff := cmp.Diff(want.Trace, got.Trace); diff != "" {
			t.Errorf("sink (fail=%v) changed decisions (-without +with):\n%s", sink.fail, diff)
		}
	}
}

func TestSinkReceivesTrace(t *testing.T) {
	sink := &fakeSink{}
	r := NewRunner(testModel(t), quietConfig(10), Options{Sink: sink})
	res, err := r.RunEpisode(context.Background(), &fakeEnv{doneAt: 4})
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	if res.EpisodeID != "ep-1" {
		t.Errorf("expected episode id from sink, got %q", res.EpisodeID)
	}
	if len(sink.steps) != res.Steps {
		t.Errorf("expected %d logged steps, got %d", res.Steps, len(sink.steps))
	}
	if len(sink.ended) != 1 || sink.ended[0].Outcome != "success" || sink.ended[0].HaltReason != "done" {
		t.Errorf("unexpected episode end %+v", sink.ended)
	}
	last := sink.steps[len(sink.steps)-1]
	if last.ReferenceAfter <= 0.99 {
		t.Errorf("expected belief in reference state to approach 1, got %f", last.ReferenceAfter)
	}
}

func TestSkillPriorsBiasSelection(t *testing.T) {
	mem := &fakeSkills{priors: policy.SkillPriors{"poke": {SuccessRate: 1, Confidence: 1}}}
	r := NewRunner(testModel(t), quietConfig(1), Options{Skills: mem})
	env := &fakeEnv{}
	if _, err := r.RunEpisode(context.Background(), env); err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	if env.actions[0] != "poke" {
		t.Errorf("expected skill prior to promote poke, got %v", env.actions)
	}
	if len(mem.outcomes) != 1 || mem.outcomes[0].Success {
		t.Errorf("expected one unsuccessful outcome recorded, got %+v", mem.outcomes)
	}

	r = NewRunner(testModel(t), quietConfig(1), Options{})
	env = &fakeEnv{}
	if _, err := r.RunEpisode(context.Background(), env); err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	if env.actions[0] != "look" {
		t.Errorf("expected look without priors, got %v", env.actions)
	}
}

func TestLearningGrowsCounters(t *testing.T) {
	m := testModel(t)
	r := NewRunner(m, quietConfig(4), Options{})
	res, err := r.RunEpisode(context.Background(), &fakeEnv{})
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	var total float64
	for _, row := range m.BCounts {
		for _, col := range row {
			for _, v := range col {
				total += v
			}
		}
	}
	// 8 initial ones plus one transition count per step
	if want := 8 + float64(res.Steps); total != want {
		t.Errorf("expected transition counts to total %f, got %f", want, total)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("expected valid model after learning, got %v", err)
	}
}

func TestInvalidModelRollsBack(t *testing.T) {
	m := testModel(t)
	before := m.Clone()
	env := &fakeEnv{onStep: func(int) { m.D[0] = -1 }}

	r := NewRunner(m, quietConfig(3), Options{})
	res, err := r.RunEpisode(context.Background(), env)
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	if !res.RolledBack {
		t.Fatal("expected rollback")
	}
	if diff := cmp.Diff(before.D, r.Model().D); diff != "" {
		t.Errorf("prior not restored (-want +got):\n%s", diff)
	}
	if err := r.Model().Validate(); err != nil {
		t.Errorf("expected restored model to validate, got %v", err)
	}
}

func TestUnknownObservationFails(t *testing.T) {
	r := NewRunner(testModel(t), quietConfig(3), Options{})
	env := &badEnv{}
	if _, err := r.RunEpisode(context.Background(), env); !errors.Is(err, model.ErrUnknownSymbol) {
		t.Errorf("expected ErrUnknownSymbol, got %v", err)
	}
}

type badEnv struct{}

func (badEnv) Reset(context.Context) error { return nil }

func (badEnv) Step(context.Context, string) (StepResult, error) {
	return StepResult{Observation: "smoke"}, nil
}

func TestAppendRecent(t *testing.T) {
	var s []int
	for i := 0; i < 5; i++ {
		s = appendRecent(s, i, 3)
	}
	if diff := cmp.Diff([]int{2, 3, 4}, s); diff != "" {
		t.Errorf("unexpected window (-want +got):\n%s", diff)
	}
}
