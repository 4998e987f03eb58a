package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region start-episode
// StartEpisode opens an episode for agentID and returns its id.
func (s *Store) StartEpisode(agentID string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO episodes (episode_id, agent_id, started_at) VALUES (?, ?, ?)`,
		id, agentID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("start episode: %w", err)
	}
	return id, nil
}
// #endregion start-episode

// #region log-step
// LogStep writes one decision step. The episode must exist.
func (s *Store) LogStep(rec StepRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO steps (episode_id, step, action, observation, reward,
		   reference_before, reference_after, entropy, efe, critical_state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EpisodeID, rec.Step, rec.Action, rec.Observation, rec.Reward,
		rec.ReferenceBefore, rec.ReferenceAfter, rec.Entropy, rec.EFE, rec.CriticalState,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}
// #endregion log-step

// #region end-episode
// EndEpisode records the episode's totals and closing time.
func (s *Store) EndEpisode(rec EpisodeRecord) error {
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`UPDATE episodes SET ended_at = ?, steps = ?, total_reward = ?, outcome = ?, halt_reason = ?
		 WHERE episode_id = ?`,
		rec.EndedAt.Format(time.RFC3339Nano), rec.Steps, rec.TotalReward,
		nullIfEmpty(rec.Outcome), nullIfEmpty(rec.HaltReason), rec.EpisodeID,
	)
	if err != nil {
		return fmt.Errorf("end episode: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("episode %s not found", rec.EpisodeID)
	}
	return nil
}
// #endregion end-episode

// #region list-episodes
// ListEpisodes returns agentID's most recent episodes, newest first.
// An empty agentID lists every agent.
func (s *Store) ListEpisodes(agentID string, limit int) ([]EpisodeRecord, error) {
	rows, err := s.db.Query(
		`SELECT episode_id, agent_id, started_at, ended_at, steps, total_reward, outcome, halt_reason
		 FROM episodes WHERE (? = '' OR agent_id = ?)
		 ORDER BY started_at DESC LIMIT ?`, agentID, agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var records []EpisodeRecord
	for rows.Next() {
		var rec EpisodeRecord
		var startedStr string
		var endedStr, outcome, halt sql.NullString
		if err := rows.Scan(&rec.EpisodeID, &rec.AgentID, &startedStr, &endedStr,
			&rec.Steps, &rec.TotalReward, &outcome, &halt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		if endedStr.Valid {
			rec.EndedAt, _ = time.Parse(time.RFC3339Nano, endedStr.String)
		}
		rec.Outcome = outcome.String
		rec.HaltReason = halt.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-episodes

// #region list-steps
// ListSteps returns an episode's steps in order.
func (s *Store) ListSteps(episodeID string) ([]StepRecord, error) {
	rows, err := s.db.Query(
		`SELECT episode_id, step, action, observation, reward, reference_before, reference_after,
		   entropy, efe, critical_state, created_at
		 FROM steps WHERE episode_id = ? ORDER BY step, id`, episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var records []StepRecord
	for rows.Next() {
		var rec StepRecord
		var createdStr string
		if err := rows.Scan(&rec.EpisodeID, &rec.Step, &rec.Action, &rec.Observation, &rec.Reward,
			&rec.ReferenceBefore, &rec.ReferenceAfter, &rec.Entropy, &rec.EFE, &rec.CriticalState,
			&createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-steps

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
