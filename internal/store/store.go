// Package store persists generative models and decision traces in SQLite.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS models (
	agent_id          TEXT PRIMARY KEY,
	schema_version    INTEGER NOT NULL,
	states            TEXT NOT NULL,
	observations      TEXT NOT NULL,
	actions           TEXT NOT NULL,
	kinds             TEXT NOT NULL,
	likelihood        BLOB NOT NULL,
	transition        BLOB NOT NULL,
	log_preferences   BLOB NOT NULL,
	prior             BLOB NOT NULL,
	costs             BLOB NOT NULL,
	likelihood_counts BLOB NOT NULL,
	transition_counts BLOB NOT NULL,
	preference_counts BLOB NOT NULL,
	updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS episodes (
	episode_id    TEXT PRIMARY KEY,
	agent_id      TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	ended_at      TEXT,
	steps         INTEGER NOT NULL DEFAULT 0,
	total_reward  REAL NOT NULL DEFAULT 0,
	outcome       TEXT,
	halt_reason   TEXT
);

CREATE TABLE IF NOT EXISTS steps (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id       TEXT NOT NULL,
	step             INTEGER NOT NULL,
	action           TEXT NOT NULL,
	observation      TEXT NOT NULL,
	reward           REAL NOT NULL,
	reference_before REAL NOT NULL,
	reference_after  REAL NOT NULL,
	entropy          REAL NOT NULL,
	efe              REAL NOT NULL,
	critical_state   TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	FOREIGN KEY (episode_id) REFERENCES episodes(episode_id)
);

CREATE INDEX IF NOT EXISTS idx_episodes_agent ON episodes(agent_id, started_at);
CREATE INDEX IF NOT EXISTS idx_steps_episode ON steps(episode_id, step);
`
// #endregion schema

// #region store-struct
// Store manages models and episode logs in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps per-connection pragmas in force for every query.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. skills).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor
