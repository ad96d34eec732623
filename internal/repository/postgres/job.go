package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

type scheduledJobRepository struct {
	db *sql.DB
}

func NewScheduledJobRepository(db *sql.DB) repository.ScheduledJobRepository {
	return &scheduledJobRepository{db: db}
}

func (r *scheduledJobRepository) Schedule(ctx context.Context, tx *sql.Tx, job *domain.ScheduledJob) error {
	query := `INSERT INTO scheduled_jobs (id, name, fulfilment_id, data, run_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		job.ID, job.Name, job.FulfilmentID, []byte(job.Data), job.RunAt, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	return nil
}

func (r *scheduledJobRepository) ListDue(ctx context.Context, asOf time.Time) ([]domain.ScheduledJob, error) {
	query := `SELECT id, name, fulfilment_id, data, run_at, created_at
	          FROM scheduled_jobs
	          WHERE run_at <= $1 AND completed_at IS NULL AND cancelled_at IS NULL
	          ORDER BY run_at`
	rows, err := r.db.QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ScheduledJob
	for rows.Next() {
		var (
			job  domain.ScheduledJob
			data []byte
		)
		if err := rows.Scan(&job.ID, &job.Name, &job.FulfilmentID, &data, &job.RunAt, &job.CreatedAt); err != nil {
			return nil, err
		}
		job.Data = data
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *scheduledJobRepository) MarkCompleted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scheduled_jobs SET completed_at = $1 WHERE id = $2 AND completed_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// CancelByFulfilment cancels every pending job of the given name for a
// fulfilment. Used when a rental start date moves, so a stale delivery
// charge schedule never double-fires.
func (r *scheduledJobRepository) CancelByFulfilment(ctx context.Context, tx *sql.Tx, fulfilmentID, name string) error {
	query := `UPDATE scheduled_jobs SET cancelled_at = $1
	          WHERE fulfilment_id = $2 AND name = $3 AND completed_at IS NULL AND cancelled_at IS NULL`
	_, err := pick(r.db, tx).ExecContext(ctx, query, time.Now().UTC(), fulfilmentID, name)
	if err != nil {
		return fmt.Errorf("failed to cancel jobs: %w", err)
	}
	return nil
}
