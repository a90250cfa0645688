package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/consilium/internal/debate"
)

// CreateRun records a newly started run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run debate.RunState) error {
	agents := make([]string, 0, len(run.Agents))
	for _, a := range run.Agents {
		agents = append(agents, string(a))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, task, agents, status, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Task.Statement, strings.Join(agents, ","), run.Status.String(), run.Started)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// SaveRound persists one complete round with its artifacts and critiques in
// a single transaction. Rounds are append-only, so an existing
// (run, round_index) row is never updated.
func (s *SQLiteStore) SaveRound(ctx context.Context, runID string, state debate.RoundState) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (run_id, round_index, started_at, completed_at)
		VALUES (?, ?, ?, ?)
	`, runID, state.Index, state.StartedAt, state.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert round: %w", err)
	}

	for _, a := range state.Artifacts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO artifacts (run_id, round_index, agent, content, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, runID, state.Index, string(a.Agent), a.Content, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert artifact for %q: %w", a.Agent, err)
		}
	}

	for _, c := range state.AllCritiques() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO critiques (run_id, round_index, reviewer, target, score, verdict, rationale)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, state.Index, string(c.Reviewer), string(c.Target), c.Score, string(c.Verdict), c.Rationale)
		if err != nil {
			return fmt.Errorf("failed to insert critique %s->%s: %w", c.Reviewer, c.Target, err)
		}
	}

	return tx.Commit()
}

// FinishRun records a run's terminal status.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status debate.RunStatus, runErr error) error {
	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, ended_at = ? WHERE id = ?
	`, status.String(), errStr, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun returns the stored summary for a run.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task, agents, status, COALESCE(error, ''), started_at, COALESCE(ended_at, started_at)
		FROM runs WHERE id = ?
	`, runID)
	return scanRun(row)
}

// ListRuns returns all stored runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, agents, status, COALESCE(error, ''), started_at, COALESCE(ended_at, started_at)
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var agents string
	if err := row.Scan(&rec.ID, &rec.Task, &agents, &rec.Status, &rec.Error, &rec.StartedAt, &rec.EndedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found")
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if agents != "" {
		rec.Agents = strings.Split(agents, ",")
	}
	return &rec, nil
}

// ListRounds reconstructs every stored RoundState for a run, in round
// order.
func (s *SQLiteStore) ListRounds(ctx context.Context, runID string) ([]debate.RoundState, error) {
	roundRows, err := s.db.QueryContext(ctx, `
		SELECT round_index, started_at, completed_at
		FROM rounds WHERE run_id = ? ORDER BY round_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer roundRows.Close()

	byIndex := make(map[int]*debate.RoundState)
	var order []int
	for roundRows.Next() {
		rs := debate.RoundState{
			Artifacts: make(map[debate.Identity]debate.Artifact),
			Critiques: make(map[debate.Identity][]debate.Critique),
		}
		if err := roundRows.Scan(&rs.Index, &rs.StartedAt, &rs.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		byIndex[rs.Index] = &rs
		order = append(order, rs.Index)
	}
	if err := roundRows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadArtifacts(ctx, runID, byIndex); err != nil {
		return nil, err
	}
	if err := s.loadCritiques(ctx, runID, byIndex); err != nil {
		return nil, err
	}

	sort.Ints(order)
	out := make([]debate.RoundState, 0, len(order))
	for _, idx := range order {
		out = append(out, *byIndex[idx])
	}
	return out, nil
}

func (s *SQLiteStore) loadArtifacts(ctx context.Context, runID string, byIndex map[int]*debate.RoundState) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round_index, agent, content, created_at
		FROM artifacts WHERE run_id = ?
	`, runID)
	if err != nil {
		return fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var a debate.Artifact
		var agent string
		if err := rows.Scan(&idx, &agent, &a.Content, &a.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan artifact: %w", err)
		}
		a.Agent = debate.Identity(agent)
		a.Round = idx
		if rs, ok := byIndex[idx]; ok {
			rs.Artifacts[a.Agent] = a
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) loadCritiques(ctx context.Context, runID string, byIndex map[int]*debate.RoundState) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round_index, reviewer, target, score, verdict, rationale
		FROM critiques WHERE run_id = ? ORDER BY round_index, target, reviewer
	`, runID)
	if err != nil {
		return fmt.Errorf("failed to query critiques: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var c debate.Critique
		var reviewer, target, verdict string
		if err := rows.Scan(&idx, &reviewer, &target, &c.Score, &verdict, &c.Rationale); err != nil {
			return fmt.Errorf("failed to scan critique: %w", err)
		}
		c.Reviewer = debate.Identity(reviewer)
		c.Target = debate.Identity(target)
		c.Round = idx
		c.Verdict = debate.Verdict(verdict)
		if rs, ok := byIndex[idx]; ok {
			rs.Critiques[c.Target] = append(rs.Critiques[c.Target], c)
		}
	}
	return rows.Err()
}
