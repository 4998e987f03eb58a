// Package skills remembers how each action has fared and turns that record
// into selection priors.
package skills

// #region imports
import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/mrlecko/macgyver-mud-sub001/internal/policy"
)

// #endregion

// #region schema

const skillOutcomesSchema = `
CREATE TABLE IF NOT EXISTS skill_outcomes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id    TEXT NOT NULL,
    action      TEXT NOT NULL,
    success     INTEGER NOT NULL DEFAULT 0,
    reward      REAL NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL
);
`

const skillOutcomesIndex = `
CREATE INDEX IF NOT EXISTS idx_skill_outcomes_lookup
ON skill_outcomes(agent_id, action);
`

// #endregion

// #region config

// Config controls how outcomes become priors.
type Config struct {
	HalfLife   time.Duration `yaml:"half_life"`   // an outcome this old counts half
	MinSamples int           `yaml:"min_samples"` // actions with fewer outcomes get no prior
}

// DefaultConfig returns a one-week half-life and three-sample minimum.
func DefaultConfig() Config {
	return Config{
		HalfLife:   7 * 24 * time.Hour,
		MinSamples: 3,
	}
}

// #endregion

// #region memory-struct

// Outcome is one recorded use of an action.
type Outcome struct {
	AgentID   string
	Action    string
	Success   bool
	Reward    float64
	CreatedAt time.Time
}

// Memory persists action outcomes in SQLite and derives decay-weighted priors.
type Memory struct {
	db     *sql.DB
	config Config
	now    func() time.Time
}

// NewMemory initializes the skill_outcomes table and returns a Memory.
func NewMemory(db *sql.DB, config Config) (*Memory, error) {
	if _, err := db.Exec(skillOutcomesSchema); err != nil {
		return nil, fmt.Errorf("skills schema: %w", err)
	}
	if _, err := db.Exec(skillOutcomesIndex); err != nil {
		return nil, fmt.Errorf("skills index: %w", err)
	}
	return &Memory{db: db, config: config, now: time.Now}, nil
}

// #endregion

// #region record-outcome

// RecordOutcome persists a single outcome row.
func (m *Memory) RecordOutcome(o Outcome) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.now()
	}
	success := 0
	if o.Success {
		success = 1
	}
	_, err := m.db.Exec(`
		INSERT INTO skill_outcomes (agent_id, action, success, reward, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.AgentID, o.Action, success, o.Reward, o.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// #endregion

// #region priors

// Priors returns the decay-weighted success rate of every action agentID has
// used at least MinSamples times. Confidence is 1 - 1/sqrt(n).
func (m *Memory) Priors(agentID string) (policy.SkillPriors, error) {
	rows, err := m.db.Query(`
		SELECT action, success, created_at
		FROM skill_outcomes
		WHERE agent_id = ?`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	type skillAccum struct {
		weightedSum float64
		totalWeight float64
		count       int
	}

	now := m.now()
	halfLife := m.config.HalfLife.Hours()
	accum := make(map[string]*skillAccum)

	for rows.Next() {
		var action string
		var success int
		var createdAtStr string
		if err := rows.Scan(&action, &success, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			continue
		}
		weight := 1.0
		if halfLife > 0 {
			ageHours := math.Max(now.Sub(createdAt).Hours(), 0)
			weight = math.Exp2(-ageHours / halfLife)
		}

		a, ok := accum[action]
		if !ok {
			a = &skillAccum{}
			accum[action] = a
		}
		a.weightedSum += float64(success) * weight
		a.totalWeight += weight
		a.count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	priors := make(policy.SkillPriors)
	for action, a := range accum {
		if a.count < m.config.MinSamples || a.totalWeight == 0 {
			continue
		}
		priors[action] = policy.SkillPrior{
			SuccessRate: a.weightedSum / a.totalWeight,
			Confidence:  1 - 1/math.Sqrt(float64(a.count)),
		}
	}
	return priors, nil
}

// #endregion
