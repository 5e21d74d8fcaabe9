// Package store keeps run history in SQLite: run summaries, per-check
// outcomes and failure snapshots.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/pageprobe/internal/sink"
	"github.com/hazyhaar/pageprobe/report"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun writes the run summary and its outcomes. Outcomes already saved
// through the sink are left as they are.
func (s *Store) SaveRun(ctx context.Context, r *report.Report) error {
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, backend, started_at, finished_at, total, passed, failed, errored)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				backend = excluded.backend,
				started_at = excluded.started_at,
				finished_at = excluded.finished_at,
				total = excluded.total,
				passed = excluded.passed,
				failed = excluded.failed,
				errored = excluded.errored`,
			r.RunID, r.Backend, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
			r.Total, r.Passed, r.Failed, r.Errored)
		if err != nil {
			return fmt.Errorf("store: save run: %w", err)
		}
		for _, o := range r.Outcomes {
			if err := insertOutcome(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveOutcome writes one outcome, creating a placeholder run row if the
// run has not been saved yet.
func (s *Store) SaveOutcome(ctx context.Context, o report.Outcome) error {
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureRun(ctx, tx, o.RunID); err != nil {
			return err
		}
		return insertOutcome(ctx, tx, o)
	})
}

// SaveSnapshot writes a failure snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap report.Snapshot) error {
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureRun(ctx, tx, snap.RunID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (id, run_id, page_url, backend, source, source_hash, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			snap.ID, snap.RunID, snap.PageURL, snap.Backend, snap.Source, snap.SourceHash, snap.Timestamp)
		if err != nil {
			return fmt.Errorf("store: save snapshot: %w", err)
		}
		return nil
	})
}

func ensureRun(ctx context.Context, tx *sql.Tx, runID string) error {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO runs (id) VALUES (?)`, runID); err != nil {
		return fmt.Errorf("store: ensure run: %w", err)
	}
	return nil
}

func insertOutcome(ctx context.Context, tx *sql.Tx, o report.Outcome) error {
	expected, err := encodeValue(o.Expected)
	if err != nil {
		return err
	}
	actual, err := encodeValue(o.Actual)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO outcomes (id, run_id, page_url, check_name, type, negated, status,
			message, expected, actual, error, snapshot_id, duration_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		o.ID, o.RunID, o.PageURL, o.Check, o.Type, o.Negated, string(o.Status),
		o.Message, expected, actual, o.Error, o.SnapshotID, o.DurationMs, o.Timestamp)
	if err != nil {
		return fmt.Errorf("store: save outcome: %w", err)
	}
	return nil
}

func encodeValue(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("store: encode value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeValue(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return ns.String
	}
	return v
}

const runColumns = `id, backend, started_at, finished_at, total, passed, failed, errored`

func scanRun(row interface{ Scan(...any) error }) (*report.Report, error) {
	var r report.Report
	var started, finished int64
	if err := row.Scan(&r.RunID, &r.Backend, &started, &finished,
		&r.Total, &r.Passed, &r.Failed, &r.Errored); err != nil {
		return nil, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	return &r, nil
}

// Run returns the run summary with its outcomes.
func (s *Store) Run(ctx context.Context, id string) (*report.Report, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: run: %w", err)
	}
	r.Outcomes, err = s.Outcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Outcomes returns a run's outcomes in the order they were recorded.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]report.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, page_url, check_name, type, negated, status, message,
			expected, actual, error, snapshot_id, duration_ms, ts
		FROM outcomes WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: outcomes: %w", err)
	}
	defer rows.Close()

	var out []report.Outcome
	for rows.Next() {
		var o report.Outcome
		var status string
		var expected, actual sql.NullString
		if err := rows.Scan(&o.ID, &o.RunID, &o.PageURL, &o.Check, &o.Type, &o.Negated,
			&status, &o.Message, &expected, &actual, &o.Error, &o.SnapshotID,
			&o.DurationMs, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan outcome: %w", err)
		}
		o.Status = report.Status(status)
		o.Expected = decodeValue(expected)
		o.Actual = decodeValue(actual)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Recent returns the latest run summaries, newest first, without outcomes.
func (s *Store) Recent(ctx context.Context, limit int) ([]report.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []report.Report
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Snapshot returns a stored snapshot.
func (s *Store) Snapshot(ctx context.Context, id string) (*report.Snapshot, error) {
	var snap report.Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, page_url, backend, source, source_hash, ts
		FROM snapshots WHERE id = ?`, id).
		Scan(&snap.ID, &snap.RunID, &snap.PageURL, &snap.Backend, &snap.Source, &snap.SourceHash, &snap.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: snapshot: %w", err)
	}
	return &snap, nil
}

// AsSink returns a sink writing outcomes and snapshots to the store. Its
// Close does not close the store.
func (s *Store) AsSink() sink.Sink { return storeSink{s} }

type storeSink struct{ s *Store }

func (k storeSink) Send(ctx context.Context, o report.Outcome) error {
	return k.s.SaveOutcome(ctx, o)
}

func (k storeSink) SendSnapshot(ctx context.Context, snap report.Snapshot) error {
	return k.s.SaveSnapshot(ctx, snap)
}

func (k storeSink) Close() error { return nil }
