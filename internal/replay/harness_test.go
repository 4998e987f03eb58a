package replay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mrlecko/macgyver-mud-sub001/internal/agent"
	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
	"github.com/mrlecko/macgyver-mud-sub001/internal/world"
)

// helper: play one room episode with the default model and record it.
func recordRoom(t *testing.T, seed uint64) (*Fixture, agent.EpisodeResult) {
	t.Helper()
	rec := NewRecorder(world.NewRoom(seed))
	r := agent.NewRunner(world.DefaultModel(), agent.DefaultConfig(), agent.Options{})
	res, err := r.RunEpisode(context.Background(), rec)
	if err != nil {
		t.Fatalf("RunEpisode: %v", err)
	}
	return rec.Fixture("default", "recorded room episode"), res
}

func TestRecorderCapturesEpisode(t *testing.T) {
	f, res := recordRoom(t, 7)
	if len(f.Steps) != res.Steps {
		t.Fatalf("expected %d recorded steps, got %d", res.Steps, len(f.Steps))
	}
	for i, s := range f.Steps {
		if s.ExpectedAction != res.Trace[i].Action {
			t.Errorf("step %d: expected action %s, got %s", i, res.Trace[i].Action, s.ExpectedAction)
		}
		if s.Observation != res.Trace[i].Observation {
			t.Errorf("step %d: expected observation %s, got %s", i, res.Trace[i].Observation, s.Observation)
		}
		if s.Quest == nil {
			t.Errorf("step %d: expected quest progress from the room", i)
		}
	}
	if res.Done && !f.Steps[len(f.Steps)-1].Done {
		t.Error("expected last recorded step to be done")
	}
}

func TestReplay_SameModelMatches(t *testing.T) {
	f, _ := recordRoom(t, 7)

	results, sum, err := Replay(context.Background(), world.DefaultModel(), agent.DefaultConfig(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !sum.OK() {
		t.Errorf("expected clean replay, got %+v", sum)
	}
	if len(results) != len(f.Steps) {
		t.Errorf("expected %d results, got %d", len(f.Steps), len(results))
	}
	for _, r := range results {
		if !r.Match {
			t.Errorf("step %d: expected %s, got %s", r.Step, r.Expected, r.Got)
		}
	}
}

func TestReplay_Mismatch(t *testing.T) {
	f, _ := recordRoom(t, 7)
	f.Steps[0].ExpectedAction = "dance"

	results, sum, err := Replay(context.Background(), world.DefaultModel(), agent.DefaultConfig(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Match {
		t.Error("expected first step to mismatch")
	}
	if sum.Mismatches != 1 || sum.OK() {
		t.Errorf("expected exactly one mismatch, got %+v", sum)
	}
}

func TestReplay_DoesNotMutateModel(t *testing.T) {
	f, _ := recordRoom(t, 3)
	m := world.DefaultModel()
	before := m.Clone()

	if _, _, err := Replay(context.Background(), m, agent.DefaultConfig(), f); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if diff := cmp.Diff(before, m, cmpopts.IgnoreUnexported(model.Model{})); diff != "" {
		t.Errorf("model changed by replay (-before +after):\n%s", diff)
	}
}

func TestReplay_UnknownObservation(t *testing.T) {
	f := &Fixture{Steps: []FixtureStep{{ExpectedAction: world.Inspect, Observation: "smoke"}}}
	if _, _, err := Replay(context.Background(), world.DefaultModel(), agent.DefaultConfig(), f); !errors.Is(err, model.ErrUnknownSymbol) {
		t.Errorf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestScriptExhausted(t *testing.T) {
	s := NewScript([]FixtureStep{{Observation: world.StillLocked}})
	ctx := context.Background()
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Step(ctx, world.Inspect); err != nil {
		t.Fatalf("first step: %v", err)
	}
	if _, err := s.Step(ctx, world.Inspect); !errors.Is(err, ErrScriptExhausted) {
		t.Errorf("expected ErrScriptExhausted, got %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Step(ctx, world.Inspect); err != nil {
		t.Errorf("expected reset to rewind the script, got %v", err)
	}
}

func TestFromEpisode(t *testing.T) {
	ep := store.EpisodeRecord{EpisodeID: "ep-1", AgentID: "a", Outcome: "success"}
	steps := []store.StepRecord{
		{Action: world.Inspect, Observation: world.WeakHint, Reward: -0.1},
		{Action: world.Pick, Observation: world.DoorOpen, Reward: 10},
	}
	f := FromEpisode(ep, steps)

	want := []FixtureStep{
		{ExpectedAction: world.Inspect, Observation: world.WeakHint, Reward: -0.1},
		{ExpectedAction: world.Pick, Observation: world.DoorOpen, Reward: 10, Done: true},
	}
	if diff := cmp.Diff(want, f.Steps); diff != "" {
		t.Errorf("fixture steps mismatch (-want +got):\n%s", diff)
	}
	if f.AgentID != "a" || f.EpisodeID != "ep-1" {
		t.Errorf("unexpected fixture header %+v", f)
	}

	ep.Outcome = "failure"
	if FromEpisode(ep, steps).Steps[1].Done {
		t.Error("expected failed episode to end without done")
	}
}

func TestFixtureSaveLoad(t *testing.T) {
	f, _ := recordRoom(t, 11)
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("fixture round trip mismatch (-want +got):\n%s", diff)
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	if err := (&Fixture{}).Save(empty); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := LoadFixture(empty); err == nil {
		t.Error("expected error for fixture without steps")
	}
}
