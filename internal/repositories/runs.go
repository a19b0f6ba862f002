package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
)

const runColumns = `id, sequence, mode, base_name, folder_id, dry_run, releases_processed, tracks_matched,
	tracks_unmatched, tracks_added, tracks_failed, report, started_at, finished_at, created_at, updated_at, deleted_at`

// RunRepository implements models.Repository[*models.SyncRun] for sync history.
//
// It also implements tasks.RunRecorder so the orchestrator can store finished reports.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record stores a finished report as a new run.
func (r *RunRepository) Record(ctx context.Context, report *models.SyncReport) error {
	run, err := models.NewSyncRun(0, report)
	if err != nil {
		return err
	}
	return r.create(ctx, run)
}

// Create inserts a new run with the next sequence. Runs without an id get a generated one.
func (r *RunRepository) Create(run *models.SyncRun) error {
	return r.create(context.Background(), run)
}

func (r *RunRepository) create(ctx context.Context, run *models.SyncRun) error {
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	run.SetSequence(sequence)

	query := `
		INSERT INTO sync_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID(),
		sequence,
		string(run.Mode),
		run.BaseName,
		run.FolderID,
		run.DryRun,
		run.ReleasesProcessed,
		run.TracksMatched,
		run.TracksUnmatched,
		run.TracksAdded,
		run.TracksFailed,
		string(run.Report),
		run.StartedAt,
		run.FinishedAt,
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`
	return scanRun(r.db.QueryRow(query, id))
}

// Update rewrites the counts, report and finish time of an existing run
func (r *RunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE sync_runs
		SET releases_processed = ?, tracks_matched = ?, tracks_unmatched = ?, tracks_added = ?, tracks_failed = ?,
			report = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.ReleasesProcessed,
		run.TracksMatched,
		run.TracksUnmatched,
		run.TracksAdded,
		run.TracksFailed,
		string(run.Report),
		run.FinishedAt,
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	return expectOneRow(result, "sync run", run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE sync_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}
	return expectOneRow(result, "sync run", id)
}

// List retrieves runs newest first.
//
// Criteria: "mode" (string) filters by mode, "limit" (int) caps the number of rows.
func (r *RunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	if mode, ok := criteria["mode"].(string); ok && mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// scanner is satisfied by [sql.Row] and [sql.Rows]
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.SyncRun, error) {
	var (
		run        models.SyncRun
		id         string
		sequence   int
		mode       string
		report     string
		finishedAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := s.Scan(&id, &sequence, &mode, &run.BaseName, &run.FolderID, &run.DryRun, &run.ReleasesProcessed,
		&run.TracksMatched, &run.TracksUnmatched, &run.TracksAdded, &run.TracksFailed, &report, &run.StartedAt,
		&finishedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.Mode = models.Mode(mode)
	run.Report = []byte(report)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return &run, nil
}

// expectOneRow fails with [shared.ErrNotFound] when an update or delete matched nothing
func expectOneRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %w or already deleted: %s", entity, shared.ErrNotFound, id)
	}
	return nil
}
