package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
)

// SchemaVersion tags every saved model. Rows written under another version
// are treated as absent and rebuilt by the caller.
const SchemaVersion = 2

// #region save-model
// SaveModel upserts m under agentID, tagged with SchemaVersion.
func (s *Store) SaveModel(agentID string, m *model.Model) error {
	return s.saveModel(agentID, m, SchemaVersion)
}

func (s *Store) saveModel(agentID string, m *model.Model, version int) error {
	names, err := encodeNames(m)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO models (agent_id, schema_version, states, observations, actions, kinds,
		   likelihood, transition, log_preferences, prior, costs,
		   likelihood_counts, transition_counts, preference_counts, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
		   schema_version = excluded.schema_version,
		   states = excluded.states,
		   observations = excluded.observations,
		   actions = excluded.actions,
		   kinds = excluded.kinds,
		   likelihood = excluded.likelihood,
		   transition = excluded.transition,
		   log_preferences = excluded.log_preferences,
		   prior = excluded.prior,
		   costs = excluded.costs,
		   likelihood_counts = excluded.likelihood_counts,
		   transition_counts = excluded.transition_counts,
		   preference_counts = excluded.preference_counts,
		   updated_at = excluded.updated_at`,
		agentID, version, names[0], names[1], names[2], names[3],
		encodeTable(m.A), encodeTable(m.B), encodeVector(m.LogC), encodeVector(m.D), encodeVector(m.Costs),
		encodeTable(m.ACounts), encodeTable(m.BCounts), encodeVector(m.CCounts),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save model %s: %w", agentID, err)
	}
	return nil
}

func encodeNames(m *model.Model) ([4]string, error) {
	var out [4]string
	for i, v := range []any{m.States, m.Observations, m.Actions, m.Kinds} {
		b, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("marshal names: %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}
// #endregion save-model

// #region load-model
// LoadModel reads the model saved under agentID. ok is false when no row
// exists or the row was written under a different SchemaVersion. A stored
// model that fails validation is returned as an error wrapping
// model.ErrInvalidModel so the caller can fall back to a default.
func (s *Store) LoadModel(agentID string) (m *model.Model, ok bool, err error) {
	var version int
	var statesJSON, obsJSON, actsJSON, kindsJSON string
	var a, b, logC, d, costs, aCnt, bCnt, cCnt []byte
	err = s.db.QueryRow(
		`SELECT schema_version, states, observations, actions, kinds,
		   likelihood, transition, log_preferences, prior, costs,
		   likelihood_counts, transition_counts, preference_counts
		 FROM models WHERE agent_id = ?`, agentID,
	).Scan(&version, &statesJSON, &obsJSON, &actsJSON, &kindsJSON,
		&a, &b, &logC, &d, &costs, &aCnt, &bCnt, &cCnt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load model %s: %w", agentID, err)
	}
	if version != SchemaVersion {
		return nil, false, nil
	}

	var p model.Params
	for _, f := range []struct {
		raw string
		dst any
	}{
		{statesJSON, &p.States},
		{obsJSON, &p.Observations},
		{actsJSON, &p.Actions},
		{kindsJSON, &p.Kinds},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, false, fmt.Errorf("unmarshal names: %w", err)
		}
	}

	nS, nO, nA := len(p.States), len(p.Observations), len(p.Actions)
	if p.Likelihood, err = decodeTable(a, nO, nS, nA); err != nil {
		return nil, false, fmt.Errorf("likelihood: %w", err)
	}
	if p.Transition, err = decodeTable(b, nS, nS, nA); err != nil {
		return nil, false, fmt.Errorf("transition: %w", err)
	}
	if p.LikelihoodCounts, err = decodeTable(aCnt, nO, nS, nA); err != nil {
		return nil, false, fmt.Errorf("likelihood counts: %w", err)
	}
	if p.TransitionCounts, err = decodeTable(bCnt, nS, nS, nA); err != nil {
		return nil, false, fmt.Errorf("transition counts: %w", err)
	}
	if p.LogPreferences, err = decodeVector(logC, nO); err != nil {
		return nil, false, fmt.Errorf("log preferences: %w", err)
	}
	if p.Prior, err = decodeVector(d, nS); err != nil {
		return nil, false, fmt.Errorf("prior: %w", err)
	}
	if p.Costs, err = decodeVector(costs, nA); err != nil {
		return nil, false, fmt.Errorf("costs: %w", err)
	}
	if p.PreferenceCounts, err = decodeVector(cCnt, nO); err != nil {
		return nil, false, fmt.Errorf("preference counts: %w", err)
	}

	m, err = model.New(p)
	if err != nil {
		return nil, false, fmt.Errorf("load model %s: %w", agentID, err)
	}
	return m, true, nil
}
// #endregion load-model

// #region list-models
// ListModels summarizes every stored model, including ones under an old
// schema version.
func (s *Store) ListModels() ([]ModelSummary, error) {
	rows, err := s.db.Query(
		`SELECT agent_id, schema_version, states, observations, actions, updated_at
		 FROM models ORDER BY agent_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var out []ModelSummary
	for rows.Next() {
		var sum ModelSummary
		var statesJSON, obsJSON, actsJSON, updatedStr string
		if err := rows.Scan(&sum.AgentID, &sum.SchemaVersion, &statesJSON, &obsJSON, &actsJSON, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		_ = json.Unmarshal([]byte(statesJSON), &sum.States)
		_ = json.Unmarshal([]byte(obsJSON), &sum.Observations)
		_ = json.Unmarshal([]byte(actsJSON), &sum.Actions)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		out = append(out, sum)
	}
	return out, rows.Err()
}
// #endregion list-models

// #region delete-model
// DeleteModel removes agentID's model. Deleting a missing model is not an error.
func (s *Store) DeleteModel(agentID string) error {
	if _, err := s.db.Exec(`DELETE FROM models WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("delete model %s: %w", agentID, err)
	}
	return nil
}
// #endregion delete-model

// #region float-encoding
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte, n int) ([]float64, error) {
	if len(b) != n*8 {
		return nil, fmt.Errorf("blob has %d bytes, want %d", len(b), n*8)
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}

// encodeTable flattens t row-major: [row][state][action].
func encodeTable(t [][][]float64) []byte {
	var flat []float64
	for _, row := range t {
		for _, col := range row {
			flat = append(flat, col...)
		}
	}
	return encodeVector(flat)
}

func decodeTable(b []byte, rows, states, actions int) ([][][]float64, error) {
	flat, err := decodeVector(b, rows*states*actions)
	if err != nil {
		return nil, err
	}
	t := make([][][]float64, rows)
	for r := range t {
		t[r] = make([][]float64, states)
		for s := range t[r] {
			off := (r*states + s) * actions
			t[r][s] = flat[off : off+actions : off+actions]
		}
	}
	return t, nil
}
// #endregion float-encoding
