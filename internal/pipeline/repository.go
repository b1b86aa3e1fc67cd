package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
)

// Repository handles database operations for job run tracking
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new job run repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ RunRepository = (*Repository)(nil)

// CreateRun creates a new run record
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO job_runs (
			job_name, status, total, processed,
			succeeded, failed, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx, query,
		run.JobName, run.Status, run.Total, run.Processed,
		run.Succeeded, run.Failed, run.StartedAt,
	).Scan(&run.ID)

	return err
}

// UpdateRun updates an existing run
func (r *Repository) UpdateRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE job_runs
		SET status = $1, total = $2, report_path = $3, report_url = $4,
		    completed_at = $5, error_message = $6
		WHERE id = $7
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.Total, run.ReportPath, run.ReportURL,
		run.CompletedAt, run.ErrorMessage, run.ID,
	)

	return err
}

// GetRun retrieves a run and its item failures by ID
func (r *Repository) GetRun(ctx context.Context, id int64) (*Run, error) {
	query := `
		SELECT id, job_name, status, total, processed, succeeded, failed,
		       report_path, report_url, error_message, started_at, completed_at
		FROM job_runs
		WHERE id = $1
	`

	run := &Run{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.JobName, &run.Status, &run.Total,
		&run.Processed, &run.Succeeded, &run.Failed,
		&run.ReportPath, &run.ReportURL, &run.ErrorMessage,
		&run.StartedAt, &run.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	failures, err := r.getFailures(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Failures = failures

	return run, nil
}

func (r *Repository) getFailures(ctx context.Context, runID int64) ([]ItemFailure, error) {
	query := `
		SELECT product_id, branch_id, error, failed_at
		FROM job_item_failures
		WHERE run_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []ItemFailure
	for rows.Next() {
		var f ItemFailure
		if err := rows.Scan(&f.ProductID, &f.BranchID, &f.Error, &f.FailedAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}

	return failures, rows.Err()
}

// IncrementProgress atomically counts one processed item
func (r *Repository) IncrementProgress(ctx context.Context, id int64, succeeded bool) error {
	query := `
		UPDATE job_runs
		SET processed = processed + 1,
		    succeeded = succeeded + CASE WHEN $1 THEN 1 ELSE 0 END,
		    failed = failed + CASE WHEN $1 THEN 0 ELSE 1 END
		WHERE id = $2
	`

	_, err := r.db.ExecContext(ctx, query, succeeded, id)
	return err
}

// RecordFailure stores the error of one item
func (r *Repository) RecordFailure(ctx context.Context, id int64, failure ItemFailure) error {
	query := `
		INSERT INTO job_item_failures (run_id, product_id, branch_id, error, failed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, id, failure.ProductID, failure.BranchID, failure.Error, failure.FailedAt)
	return err
}
