package main

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
	"github.com/mrlecko/macgyver-mud-sub001/internal/world"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	logger = zap.NewNop()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "mud.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestLoadOrDefault_Missing(t *testing.T) {
	st := testStore(t)
	m, err := loadOrDefault(st, "nobody")
	if err != nil {
		t.Fatalf("loadOrDefault: %v", err)
	}
	if _, err := m.ActionIndex(world.Inspect); err != nil {
		t.Errorf("expected the default room model, got %v", err)
	}
}

func TestLoadOrDefault_Stored(t *testing.T) {
	st := testStore(t)
	saved := world.DefaultModel()
	saved.CCounts[0] = 42
	if err := st.SaveModel("scout", saved); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	m, err := loadOrDefault(st, "scout")
	if err != nil {
		t.Fatalf("loadOrDefault: %v", err)
	}
	if m.CCounts[0] != 42 {
		t.Errorf("expected the stored model, got preference count %f", m.CCounts[0])
	}
}

func TestLoadOrDefault_InvalidFallsBack(t *testing.T) {
	st := testStore(t)
	if err := st.SaveModel("broken", world.DefaultModel()); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	bad := world.DefaultModel()
	bad.D[0] = -1
	if err := st.SaveModel("broken", bad); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	if _, _, err := st.LoadModel("broken"); !errors.Is(err, model.ErrInvalidModel) {
		t.Fatalf("expected stored model to fail validation, got %v", err)
	}

	m, err := loadOrDefault(st, "broken")
	if err != nil {
		t.Fatalf("loadOrDefault: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("expected a valid fallback, got %v", err)
	}
	if m.D[0] < 0 {
		t.Error("expected the default prior, got the stored one")
	}
}

func TestResolveEpisode(t *testing.T) {
	st := testStore(t)
	a, err := st.StartEpisode("x")
	if err != nil {
		t.Fatal(err)
	}
	b, err := st.StartEpisode("x")
	if err != nil {
		t.Fatal(err)
	}

	got, err := resolveEpisode(st, a)
	if err != nil || got != a {
		t.Errorf("expected full id to resolve to %s, got %s (%v)", a, got, err)
	}
	got, err = resolveEpisode(st, b[:8])
	if a[:8] != b[:8] && (err != nil || got != b) {
		t.Errorf("expected prefix to resolve to %s, got %s (%v)", b, got, err)
	}
	if _, err := resolveEpisode(st, "zzzz"); err == nil {
		t.Error("expected error for unknown episode")
	}
	if _, err := resolveEpisode(st, ""); err == nil {
		t.Error("expected error for ambiguous empty prefix")
	}
}
