package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		agents TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS rounds (
		run_id TEXT NOT NULL,
		round_index INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, round_index),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL,
		round_index INTEGER NOT NULL,
		agent TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, round_index, agent),
		FOREIGN KEY (run_id, round_index) REFERENCES rounds(run_id, round_index) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS critiques (
		run_id TEXT NOT NULL,
		round_index INTEGER NOT NULL,
		reviewer TEXT NOT NULL,
		target TEXT NOT NULL,
		score REAL NOT NULL,
		verdict TEXT NOT NULL,
		rationale TEXT,
		PRIMARY KEY (run_id, round_index, reviewer, target),
		FOREIGN KEY (run_id, round_index) REFERENCES rounds(run_id, round_index) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id, round_index);
	CREATE INDEX IF NOT EXISTS idx_critiques_run_target ON critiques(run_id, round_index, target);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
