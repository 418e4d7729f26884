package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
)

// JobRepositoryPG persists job records. Status changes are guarded UPDATEs:
// an illegal transition affects zero rows instead of clobbering a terminal
// state.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// CreateTx inserts a new pending job inside the caller's transaction, so the
// job row and its debit commit or roll back together.
func (r *JobRepositoryPG) CreateTx(ctx context.Context, tx pgx.Tx, job *domain.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO jobs (id, user_id, job_type, prompt, input_ref, provider, cost_credits, status, params)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`,
		job.ID,
		job.UserID,
		job.Type,
		job.Prompt,
		job.InputRef,
		job.Provider,
		job.CostCredits,
		domain.JobStatusPending,
		params,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, job_type, prompt, input_ref, provider, cost_credits, status, result_ref, error_message, params, created_at, updated_at
FROM jobs
WHERE id = $1;
`, jobID)
	return scanJob(row)
}

// MarkProcessing moves a pending job to processing. Reports false when the
// job was not pending (already claimed or terminal).
func (r *JobRepositoryPG) MarkProcessing(ctx context.Context, jobID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs
SET status = 'processing', updated_at = now()
WHERE id = $1 AND status = 'pending';
`, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompletedTx finishes a processing job inside the caller's transaction
// so the generation row lands atomically with the terminal transition.
func (r *JobRepositoryPG) MarkCompletedTx(ctx context.Context, tx pgx.Tx, jobID, resultRef string) error {
	tag, err := tx.Exec(ctx, `
UPDATE jobs
SET status = 'completed', result_ref = $2, updated_at = now()
WHERE id = $1 AND status = 'processing';
`, jobID, resultRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// MarkFailed finishes a processing job with an error message.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs
SET status = 'failed', error_message = $2, updated_at = now()
WHERE id = $1 AND status = 'processing';
`, jobID, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// ListStuck returns jobs sitting in processing past the staleness threshold.
// It backs both the reconciliation sweep and the monitoring endpoint.
func (r *JobRepositoryPG) ListStuck(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, job_type, prompt, input_ref, provider, cost_credits, status, result_ref, error_message, params, created_at, updated_at
FROM jobs
WHERE status = 'processing' AND updated_at < now() - $1::interval
ORDER BY updated_at ASC
LIMIT $2;
`, olderThan.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var params []byte
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Type,
		&job.Prompt,
		&job.InputRef,
		&job.Provider,
		&job.CostCredits,
		&job.Status,
		&job.ResultRef,
		&job.ErrorMessage,
		&params,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Params); err != nil {
			return nil, err
		}
	}
	return &job, nil
}
