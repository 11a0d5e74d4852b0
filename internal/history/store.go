// Package history keeps a record of verification runs in SQLite so that
// regressions can be traced across runs.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/playcheck/internal/filelock"
	"github.com/harrison/playcheck/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// RunRecord is one stored verification run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Adapter    string
	Documents  int
	Totals     models.Counts
	OK         bool
	Canceled   bool
}

// ResultRecord is one stored block result.
type ResultRecord struct {
	RunID        string
	Document     string
	BlockID      string
	Ordinal      int
	Lines        models.LineRange
	Status       models.Status
	Diff         string
	FaultKind    string
	FaultMessage string
}

// Store manages the SQLite run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath.
// ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores rep under a fresh run id and returns the id.
func (s *Store) RecordRun(ctx context.Context, rep models.Report, adapter string, started, finished time.Time) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, finished_at, adapter, documents, passed, failed, skipped, faults, ok, canceled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, started.UTC(), finished.UTC(), adapter, len(rep.Documents),
		rep.Totals.Passed, rep.Totals.Failed, rep.Totals.Skipped, rep.Totals.Faults,
		rep.OK(), rep.Canceled,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
		(run_id, document, block, ordinal, line_start, line_end, status, diff, fault_kind, fault_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range rep.Documents {
		for _, res := range doc.Results {
			var faultKind, faultMsg string
			if res.Fault != nil {
				faultKind, faultMsg = string(res.Fault.Kind), res.Fault.Message
			}
			if _, err := stmt.ExecContext(ctx, runID, res.Document, res.BlockID, res.Ordinal,
				res.Lines.Start, res.Lines.End, string(res.Status), res.Diff, faultKind, faultMsg); err != nil {
				return "", fmt.Errorf("insert result %s/%s: %w", res.Document, res.BlockID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, finished_at, adapter, documents,
		passed, failed, skipped, faults, ok, canceled
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Adapter, &r.Documents,
			&r.Totals.Passed, &r.Totals.Failed, &r.Totals.Skipped, &r.Totals.Faults,
			&r.OK, &r.Canceled); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunResults returns the results of a run in document and block order.
// A unique id prefix is accepted in place of the full id.
func (s *Store) RunResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	id, err := s.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT run_id, document, block, ordinal, line_start, line_end,
		status, diff, fault_kind, fault_message
		FROM results WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var r ResultRecord
		var status string
		if err := rows.Scan(&r.RunID, &r.Document, &r.BlockID, &r.Ordinal, &r.Lines.Start, &r.Lines.End,
			&status, &r.Diff, &r.FaultKind, &r.FaultMessage); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = models.Status(status)
		results = append(results, r)
	}
	return results, rows.Err()
}

// resolveRunID expands a unique id prefix.
func (s *Store) resolveRunID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("run id cannot be empty")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return "", fmt.Errorf("query run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no run matches %q", prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("run id %q is ambiguous", prefix)
	}
}

// Record opens the database at dbPath under its file lock, stores rep and
// closes the database again. Concurrent playcheck processes sharing one
// history file are serialized by the lock.
func Record(ctx context.Context, dbPath string, rep models.Report, adapter string, started, finished time.Time) (string, error) {
	var runID string
	err := filelock.WithLock(ctx, dbPath, func() error {
		store, err := NewStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err = store.RecordRun(ctx, rep, adapter, started, finished)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("record run history: %w", err)
	}
	return runID, nil
}
