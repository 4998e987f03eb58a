package world

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mrlecko/macgyver-mud-sub001/internal/agent"
	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
	"github.com/mrlecko/macgyver-mud-sub001/internal/skills"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
)

func TestModelsAreValid(t *testing.T) {
	for name, m := range map[string]*model.Model{"default": DefaultModel(), "true": TrueModel()} {
		if err := m.Validate(); err != nil {
			t.Errorf("%s model invalid: %v", name, err)
		}
		for _, a := range []string{Inspect, Pick, Bash} {
			if _, err := m.ActionIndex(a); err != nil {
				t.Errorf("%s model: %v", name, err)
			}
		}
	}
	if DefaultModel() == DefaultModel() {
		t.Error("expected a fresh model per call")
	}
}

func TestStepBeforeReset(t *testing.T) {
	r := NewRoom(1)
	if _, err := r.Step(context.Background(), Inspect); err == nil {
		t.Error("expected error stepping an unreset room")
	}
}

func TestUnknownAction(t *testing.T) {
	r := NewRoom(1)
	if err := r.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Step(context.Background(), "dance"); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestRoomReproducible(t *testing.T) {
	run := func() []string {
		r := NewRoom(42)
		if err := r.Reset(context.Background()); err != nil {
			t.Fatal(err)
		}
		var obs []string
		for i := 0; i < 10; i++ {
			out, err := r.Step(context.Background(), Inspect)
			if err != nil {
				t.Fatal(err)
			}
			obs = append(obs, out.Observation)
		}
		return obs
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("same seed gave different observations:\n%s", diff)
	}
}

func TestInspectKeepsLockAndAdvancesQuest(t *testing.T) {
	r := NewRoom(7)
	if err := r.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	hidden := r.HiddenState()
	out, err := r.Step(context.Background(), Inspect)
	if err != nil {
		t.Fatal(err)
	}
	if r.HiddenState() != hidden {
		t.Errorf("inspect changed the lock from %s to %s", hidden, r.HiddenState())
	}
	if out.Observation != WeakHint && out.Observation != StrongHint {
		t.Errorf("expected a hint, got %s", out.Observation)
	}
	if out.Quest == nil || out.Quest.SubgoalIndex != 1 || out.Quest.StepsOnSubgoal != 0 {
		t.Errorf("expected quest to advance to subgoal 1, got %+v", out.Quest)
	}
	if out.Location != "lock" || out.Reward != -0.1 || out.Done {
		t.Errorf("unexpected step result %+v", out)
	}
}

func TestEscape(t *testing.T) {
	certain, err := model.New(roomParams(1, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRoomWithModel(certain, 3)
	if err := r.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	out, err := r.Step(context.Background(), Pick)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Done || out.Observation != DoorOpen || out.Reward != EscapeReward {
		t.Errorf("expected escape, got %+v", out)
	}
	if out.Quest.SubgoalIndex != 2 || out.Distance != 0 {
		t.Errorf("expected finished quest, got %+v distance %f", out.Quest, out.Distance)
	}
}

func TestSample(t *testing.T) {
	p := []float64{0.2, 0, 0.8}
	cases := []struct {
		u    float64
		want int
	}{
		{0.0, 0},
		{0.19, 0},
		{0.2, 2},
		{0.99, 2},
		{1.0, 2},
	}
	for _, c := range cases {
		if got := sample(p, c.u); got != c.want {
			t.Errorf("sample(%v, %f): expected %d, got %d", p, c.u, c.want, got)
		}
	}
}

func TestAgentInRoomWithStore(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "room.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	mem, err := skills.NewMemory(st.DB(), skills.DefaultConfig())
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}

	cfg := agent.DefaultConfig()
	cfg.AgentID = "room-agent"
	r := agent.NewRunner(DefaultModel(), cfg, agent.Options{Sink: st, Skills: mem})
	room := NewRoom(11)

	for i := 0; i < 3; i++ {
		res, err := r.RunEpisode(context.Background(), room)
		if err != nil {
			t.Fatalf("episode %d: %v", i, err)
		}
		if res.Steps == 0 || res.Steps > cfg.MaxSteps {
			t.Errorf("episode %d: unexpected step count %d", i, res.Steps)
		}
		steps, err := st.ListSteps(res.EpisodeID)
		if err != nil {
			t.Fatalf("ListSteps: %v", err)
		}
		if len(steps) != res.Steps {
			t.Errorf("episode %d: expected %d logged steps, got %d", i, res.Steps, len(steps))
		}
	}

	if err := r.Model().Validate(); err != nil {
		t.Fatalf("learned model invalid: %v", err)
	}
	if err := st.SaveModel(cfg.AgentID, r.Model()); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	loaded, ok, err := st.LoadModel(cfg.AgentID)
	if err != nil || !ok {
		t.Fatalf("LoadModel: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(r.Model().BCounts, loaded.BCounts); diff != "" {
		t.Errorf("learned counts lost on reload:\n%s", diff)
	}

	eps, err := st.ListEpisodes(cfg.AgentID, 10)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(eps) != 3 {
		t.Errorf("expected 3 episodes, got %d", len(eps))
	}
}

func TestSinkIndependentDecisionsInRoom(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "room.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	run := func(opts agent.Options) []agent.StepTrace {
		r := agent.NewRunner(DefaultModel(), agent.DefaultConfig(), opts)
		res, err := r.RunEpisode(context.Background(), NewRoom(5))
		if err != nil {
			t.Fatalf("RunEpisode: %v", err)
		}
		return res.Trace
	}
	if diff := cmp.Diff(run(agent.Options{}), run(agent.Options{Sink: st})); diff != "" {
		t.Errorf("sink changed decisions (-without +with):\n%s", diff)
	}
}
