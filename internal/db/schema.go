// Package db owns the application schema. The DDL is applied at boot the
// same way River's own migrations are, so a fresh database is usable
// without external tooling.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS credit_accounts (
    user_id         UUID PRIMARY KEY,
    balance         BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    total_purchased BIGINT NOT NULL DEFAULT 0,
    total_spent     BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credit_transactions (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id     UUID NOT NULL REFERENCES credit_accounts(user_id),
    amount      BIGINT NOT NULL,
    tx_type     TEXT NOT NULL CHECK (tx_type IN ('purchase', 'spend', 'refund', 'bonus')),
    description TEXT NOT NULL DEFAULT '',
    job_id      UUID,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- At most one spend and one refund may ever exist for a job.
CREATE UNIQUE INDEX IF NOT EXISTS credit_transactions_job_type_uniq
    ON credit_transactions (job_id, tx_type) WHERE job_id IS NOT NULL;

CREATE INDEX IF NOT EXISTS credit_transactions_user_created_idx
    ON credit_transactions (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS jobs (
    id            UUID PRIMARY KEY,
    user_id       UUID NOT NULL,
    job_type      TEXT NOT NULL CHECK (job_type IN ('text_to_image', 'image_to_image', 'text_to_video', 'image_to_video')),
    prompt        TEXT NOT NULL,
    input_ref     TEXT NOT NULL DEFAULT '',
    provider      TEXT NOT NULL,
    cost_credits  BIGINT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
    result_ref    TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    params        JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS jobs_user_created_idx ON jobs (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS jobs_status_updated_idx ON jobs (status, updated_at);

CREATE TABLE IF NOT EXISTS generations (
    id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    job_id       UUID NOT NULL UNIQUE REFERENCES jobs(id),
    user_id      UUID NOT NULL,
    media_ref    TEXT NOT NULL,
    content_type TEXT NOT NULL,
    provider     TEXT NOT NULL,
    params       JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_credentials (
    provider   TEXT PRIMARY KEY,
    api_key    TEXT NOT NULL,
    properties JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Ensure applies the application schema.
func Ensure(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("db: ensure schema: %w", err)
	}
	return nil
}
