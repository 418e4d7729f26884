// Package ledger owns credit balances and their immutable transaction
// history. Debits run inside the job submission transaction; refunds are
// idempotent per job.
package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
)

// AccountRepo is the minimal account persistence contract the ledger needs.
type AccountRepo interface {
	Ensure(ctx context.Context, userID string) error
	Debit(ctx context.Context, tx pgx.Tx, userID string, amount int64, jobID, description string) error
	Refund(ctx context.Context, userID string, amount int64, jobID, description string) (bool, error)
	Grant(ctx context.Context, userID string, amount int64, txType domain.TransactionType, description string) error
	Get(ctx context.Context, userID string) (*domain.CreditAccount, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error)
}

type Service interface {
	// EnsureAccount provisions the account with the signup bonus on first use.
	EnsureAccount(ctx context.Context, userID string) error
	// Debit atomically charges amount for jobID within the caller's
	// transaction. Returns domain.ErrInsufficientCredits without writing
	// anything when the balance is too low.
	Debit(ctx context.Context, tx pgx.Tx, userID string, amount int64, jobID string) error
	// Refund compensates a debited job. At most one refund is ever applied
	// per job; repeated calls are safe and report false.
	Refund(ctx context.Context, userID string, amount int64, jobID, reason string) (bool, error)
	// Grant credits the account (purchase or bonus).
	Grant(ctx context.Context, userID string, amount int64, txType domain.TransactionType, description string) error
	// Balance returns the account snapshot.
	Balance(ctx context.Context, userID string) (*domain.CreditAccount, error)
	// ListTransactions returns ledger entries, newest first.
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error)
}

type service struct {
	repo AccountRepo
}

// NewService creates a ledger service over the account repository.
func NewService(repo AccountRepo) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) EnsureAccount(ctx context.Context, userID string) error {
	return s.repo.Ensure(ctx, userID)
}

func (s *service) Debit(ctx context.Context, tx pgx.Tx, userID string, amount int64, jobID string) error {
	return s.repo.Debit(ctx, tx, userID, amount, jobID, "generation job "+jobID)
}

func (s *service) Refund(ctx context.Context, userID string, amount int64, jobID, reason string) (bool, error) {
	description := "refund for job " + jobID
	if reason != "" {
		description += ": " + reason
	}
	return s.repo.Refund(ctx, userID, amount, jobID, description)
}

func (s *service) Grant(ctx context.Context, userID string, amount int64, txType domain.TransactionType, description string) error {
	return s.repo.Grant(ctx, userID, amount, txType, description)
}

func (s *service) Balance(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	return s.repo.ListTransactions(ctx, userID, limit)
}
