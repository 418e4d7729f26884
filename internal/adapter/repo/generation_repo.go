package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
)

// GenerationRepositoryPG persists derived generation artifacts.
type GenerationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRepository creates a new generation repository backed by PostgreSQL.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{pool: pool}
}

// CreateTx inserts the generation row inside the caller's transaction; the
// unique constraint on job_id keeps it one-to-one with the completed job.
func (r *GenerationRepositoryPG) CreateTx(ctx context.Context, tx pgx.Tx, gen *domain.Generation) error {
	params, err := json.Marshal(gen.Params)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO generations (job_id, user_id, media_ref, content_type, provider, params)
VALUES ($1, $2, $3, $4, $5, $6);
`, gen.JobID, gen.UserID, gen.MediaRef, gen.ContentType, gen.Provider, params)
	return err
}

// GetByJobID fetches the generation for a completed job.
func (r *GenerationRepositoryPG) GetByJobID(ctx context.Context, jobID string) (*domain.Generation, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, job_id, user_id, media_ref, content_type, provider, params, created_at
FROM generations
WHERE job_id = $1;
`, jobID)
	var gen domain.Generation
	var params []byte
	if err := row.Scan(&gen.ID, &gen.JobID, &gen.UserID, &gen.MediaRef, &gen.ContentType, &gen.Provider, &params, &gen.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &gen.Params); err != nil {
			return nil, err
		}
	}
	return &gen, nil
}
