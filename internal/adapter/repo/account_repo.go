package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
)

// AccountRepositoryPG owns credit_accounts and credit_transactions. Balance
// changes and their ledger rows are always written in one transaction.
type AccountRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new account repository backed by PostgreSQL.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepositoryPG {
	return &AccountRepositoryPG{pool: pool}
}

// Ensure provisions the account with the signup bonus on first touch. It is
// a no-op for existing accounts.
func (r *AccountRepositoryPG) Ensure(ctx context.Context, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
INSERT INTO credit_accounts (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING;
`, userID, domain.SignupBonusCredits)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		_, err = tx.Exec(ctx, `
INSERT INTO credit_transactions (user_id, amount, tx_type, description)
VALUES ($1, $2, 'bonus', 'signup bonus');
`, userID, domain.SignupBonusCredits)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Debit runs inside the caller's transaction. The balance check and the
// decrement are a single conditional UPDATE so concurrent debits against the
// same account serialize at the row; zero rows affected means the balance
// was too low and nothing was written.
func (r *AccountRepositoryPG) Debit(ctx context.Context, tx pgx.Tx, userID string, amount int64, jobID, description string) error {
	tag, err := tx.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance - $2,
    total_spent = total_spent + $2,
    updated_at = now()
WHERE user_id = $1 AND balance >= $2;
`, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}
	_, err = tx.Exec(ctx, `
INSERT INTO credit_transactions (user_id, amount, tx_type, description, job_id)
VALUES ($1, $2, 'spend', $3, $4);
`, userID, -amount, description, jobID)
	return err
}

// Refund compensates a debited job. The refund row carries the job id, and
// the partial unique index on (job_id, tx_type) makes the insert — and
// therefore the balance increment — at most once per job, no matter how
// often the caller retries. Reports whether a refund was applied.
// total_spent is a monotonic counter like total_purchased: the spend row
// stays on the books, so only the balance is restored.
func (r *AccountRepositoryPG) Refund(ctx context.Context, userID string, amount int64, jobID, description string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
INSERT INTO credit_transactions (user_id, amount, tx_type, description, job_id)
VALUES ($1, $2, 'refund', $3, $4)
ON CONFLICT (job_id, tx_type) WHERE job_id IS NOT NULL DO NOTHING;
`, userID, amount, description, jobID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}
	_, err = tx.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance + $2,
    updated_at = now()
WHERE user_id = $1;
`, userID, amount)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Grant credits the account unconditionally (purchase or bonus).
func (r *AccountRepositoryPG) Grant(ctx context.Context, userID string, amount int64, txType domain.TransactionType, description string) error {
	if err := r.Ensure(ctx, userID); err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	purchased := int64(0)
	if txType == domain.TransactionTypePurchase {
		purchased = amount
	}
	_, err = tx.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance + $2,
    total_purchased = total_purchased + $3,
    updated_at = now()
WHERE user_id = $1;
`, userID, amount, purchased)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO credit_transactions (user_id, amount, tx_type, description)
VALUES ($1, $2, $3, $4);
`, userID, amount, txType, description)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get fetches the account by user id.
func (r *AccountRepositoryPG) Get(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	row := r.pool.QueryRow(ctx, `
SELECT user_id, balance, total_purchased, total_spent, created_at, updated_at
FROM credit_accounts
WHERE user_id = $1;
`, userID)
	var acc domain.CreditAccount
	if err := row.Scan(&acc.UserID, &acc.Balance, &acc.TotalPurchased, &acc.TotalSpent, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// ListTransactions returns the newest ledger entries first.
func (r *AccountRepositoryPG) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, amount, tx_type, description, COALESCE(job_id::text, ''), created_at
FROM credit_transactions
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var entries []domain.CreditTransaction
	for rows.Next() {
		var entry domain.CreditTransaction
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Amount, &entry.Type, &entry.Description, &entry.JobID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
