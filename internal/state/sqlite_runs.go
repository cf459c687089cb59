package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
)

// timeLayout is fixed width so stored timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordScan stores a completed scan and a snapshot of each model in one
// transaction.
func (s *SQLiteStore) RecordScan(ctx context.Context, project, source string, startedAt time.Time, models []metadata.Model) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:          generateID(),
		Project:     project,
		Source:      source,
		StartedAt:   startedAt.UTC(),
		CompletedAt: time.Now().UTC(),
		ModelCount:  len(models),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scan_runs (id, project, source, started_at, completed_at, model_count) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Project, run.Source, run.StartedAt.Format(timeLayout), run.CompletedAt.Format(timeLayout), run.ModelCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	for i, m := range models {
		snap := NewSnapshot(m)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO model_snapshots (run_id, position, unique_id, name, schema_name, model_type, column_count, hash) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, snap.UniqueID, snap.Name, snap.Schema, string(snap.ModelType), snap.ColumnCount, snap.Hash,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record model %s: %w", snap.UniqueID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit scan: %w", err)
	}

	s.logger.Debug("recorded scan",
		slog.String("id", run.ID),
		slog.String("project", project),
		slog.Int("models", run.ModelCount))
	return run, nil
}

// ListRuns returns the most recent runs of a project, newest first.
// A non-positive limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, project string, limit int) ([]Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, source, started_at, completed_at, model_count FROM scan_runs WHERE project = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		project, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run of a project, or ErrNoRuns.
func (s *SQLiteStore) LatestRun(ctx context.Context, project string) (*Run, error) {
	runs, err := s.ListRuns(ctx, project, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return &runs[0], nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, project, source, started_at, completed_at, model_count FROM scan_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// Snapshots returns the model snapshots of a run in scan order.
func (s *SQLiteStore) Snapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT unique_id, name, schema_name, model_type, column_count, hash FROM model_snapshots WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var modelType string
		if err := rows.Scan(&snap.UniqueID, &snap.Name, &snap.Schema, &modelType, &snap.ColumnCount, &snap.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.ModelType = metadata.ModelType(modelType)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	return snaps, nil
}

// CompareLatest diffs models against the project's most recent run.
// ok is false when there is no earlier run to compare with.
func (s *SQLiteStore) CompareLatest(ctx context.Context, project string, models []metadata.Model) (diff Diff, ok bool, err error) {
	latest, err := s.LatestRun(ctx, project)
	if errors.Is(err, ErrNoRuns) {
		return Diff{}, false, nil
	}
	if err != nil {
		return Diff{}, false, err
	}

	snaps, err := s.Snapshots(ctx, latest.ID)
	if err != nil {
		return Diff{}, false, err
	}
	return Compare(snaps, models), true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt, completedAt string
	if err := row.Scan(&run.ID, &run.Project, &run.Source, &startedAt, &completedAt, &run.ModelCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	var err error
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at for run %s: %w", run.ID, err)
	}
	if run.CompletedAt, err = time.Parse(timeLayout, completedAt); err != nil {
		return nil, fmt.Errorf("invalid completed_at for run %s: %w", run.ID, err)
	}
	return &run, nil
}
