// Package history keeps a local log of collector sync runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is the outcome of syncing one agent.
type Run struct {
	ID        int64
	RunAt     time.Time
	AgentType string
	Records   int
	Succeeded int
	Failed    int
	DryRun    bool
	Error     string
}

// OK reports whether the run completed without a collection or sync error.
func (r Run) OK() bool { return r.Error == "" }

// Store records and lists runs.
type Store struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_at INTEGER NOT NULL,
	agent_type TEXT NOT NULL,
	records INTEGER NOT NULL DEFAULT 0,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	dry_run INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_time ON runs(run_at);
`

// DefaultPath returns the history database path inside dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "history.db")
}

// Open opens or creates the history database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Record stores r. A zero RunAt is set to now.
func (s *Store) Record(ctx context.Context, r Run) error {
	if r.RunAt.IsZero() {
		r.RunAt = time.Now()
	}
	dry := 0
	if r.DryRun {
		dry = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_at, agent_type, records, succeeded, failed, dry_run, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunAt.UnixMilli(), r.AgentType, r.Records, r.Succeeded, r.Failed, dry, r.Error)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_at, agent_type, records, succeeded, failed, dry_run, error
		 FROM runs ORDER BY run_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var at int64
		var dry int
		if err := rows.Scan(&r.ID, &at, &r.AgentType, &r.Records, &r.Succeeded, &r.Failed, &dry, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.RunAt = time.UnixMilli(at)
		r.DryRun = dry != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastSuccess returns the most recent error-free, non-dry run for agentType.
func (s *Store) LastSuccess(ctx context.Context, agentType string) (Run, bool, error) {
	var r Run
	var at int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, run_at, agent_type, records, succeeded, failed, error
		 FROM runs WHERE agent_type = ? AND error = '' AND dry_run = 0
		 ORDER BY run_at DESC, id DESC LIMIT 1`, agentType).
		Scan(&r.ID, &at, &r.AgentType, &r.Records, &r.Succeeded, &r.Failed, &r.Error)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("last success: %w", err)
	}
	r.RunAt = time.UnixMilli(at)
	return r, true, nil
}

// Prune deletes runs older than cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
