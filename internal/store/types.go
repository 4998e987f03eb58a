package store

import "time"

// #region episode-record
// EpisodeRecord is one row of the episodes table.
type EpisodeRecord struct {
	EpisodeID   string
	AgentID     string
	StartedAt   time.Time
	EndedAt     time.Time // zero while the episode is running
	Steps       int
	TotalReward float64
	Outcome     string // "success" | "failure" | ""
	HaltReason  string
}
// #endregion episode-record

// #region step-record
// StepRecord is one decision step. ReferenceBefore and ReferenceAfter are the
// belief in the model's reference state (its first state) before and after
// the observation was absorbed.
type StepRecord struct {
	EpisodeID       string
	Step            int
	Action          string
	Observation     string
	Reward          float64
	ReferenceBefore float64
	ReferenceAfter  float64
	Entropy         float64
	EFE             float64
	CriticalState   string
	CreatedAt       time.Time
}
// #endregion step-record

// #region model-summary
// ModelSummary describes a stored model without decoding its tables.
type ModelSummary struct {
	AgentID       string
	SchemaVersion int
	States        []string
	Observations  []string
	Actions       []string
	UpdatedAt     time.Time
}
// #endregion model-summary
