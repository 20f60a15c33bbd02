// Package auditlog persists closed-loop repair runs to Postgres, one row
// per iteration. It's optional: the repair driver itself never depends on
// this package, and rows are written only through a Store built over an
// open *sql.DB (a nil *sql.DB is not checked for).
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/divyang-garg/astra-guardrails/internal/repairdriver"
)

// Record is one repair-loop iteration as persisted.
type Record struct {
	ID         int64
	RunID      string
	Iter       int
	IssueCount int
	Module     string // canonical JSON at this iteration
	AppliedAt  time.Time
}

// Open opens a Postgres connection via the lib/pq driver and verifies it
// with a ping, matching the teacher's database.Init.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return db, nil
}

// Store writes repair-loop history to an append-only audit table.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store over an already-open *sql.DB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the DDL for the audit table, run once at startup by whatever
// owns migrations; this package only reads and writes rows.
const Schema = `
CREATE TABLE IF NOT EXISTS repair_runs (
	id SERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	iter INTEGER NOT NULL,
	issue_count INTEGER NOT NULL,
	module_json TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
)`

// RecordRun persists every iteration of a repair result as one row each.
func (s *Store) RecordRun(ctx context.Context, result repairdriver.Result, moduleJSON func(iter int) (string, error)) error {
	query := `
		INSERT INTO repair_runs (run_id, iter, issue_count, module_json, applied_at)
		VALUES ($1, $2, $3, $4, $5)`

	for _, h := range result.History {
		mj, err := moduleJSON(h.Iter)
		if err != nil {
			return fmt.Errorf("failed to render module for run %s iter %d: %w", result.RunID, h.Iter, err)
		}
		if _, err := s.db.ExecContext(ctx, query, result.RunID, h.Iter, h.IssueCount, mj, time.Now()); err != nil {
			return fmt.Errorf("failed to record repair run %s iter %d: %w", result.RunID, h.Iter, err)
		}
	}
	return nil
}

// ListByRunID retrieves all recorded iterations for a given run, ordered
// by iteration number.
func (s *Store) ListByRunID(ctx context.Context, runID string) ([]Record, error) {
	query := `
		SELECT id, run_id, iter, issue_count, module_json, applied_at
		FROM repair_runs
		WHERE run_id = $1
		ORDER BY iter ASC`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repair run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.RunID, &r.Iter, &r.IssueCount, &r.Module, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repair run row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
