package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/ledger"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/orchestrator"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/storage"
)

type stubTx struct{}

func (stubTx) Begin(context.Context) (pgx.Tx, error) { return stubTx{}, nil }
func (stubTx) Commit(context.Context) error          { return nil }
func (stubTx) Rollback(context.Context) error        { return nil }
func (stubTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not supported")
}
func (stubTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (stubTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (stubTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not supported")
}
func (stubTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (stubTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}
func (stubTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (stubTx) Conn() *pgx.Conn                                  { return nil }

type stubBeginner struct{}

func (stubBeginner) Begin(context.Context) (pgx.Tx, error) { return stubTx{}, nil }

type stubJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{jobs: make(map[string]*domain.Job)}
}

func (s *stubJobRepo) put(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
}

func (s *stubJobRepo) CreateTx(_ context.Context, _ pgx.Tx, job *domain.Job) error {
	s.put(job)
	return nil
}

func (s *stubJobRepo) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *stubJobRepo) MarkProcessing(context.Context, string) (bool, error) { return false, nil }
func (s *stubJobRepo) MarkCompletedTx(context.Context, pgx.Tx, string, string) error {
	return nil
}
func (s *stubJobRepo) MarkFailed(context.Context, string, string) error { return nil }

func (s *stubJobRepo) ListStuck(_ context.Context, _ time.Duration, _ int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusProcessing {
			out = append(out, *job)
		}
	}
	return out, nil
}

type stubGenerationRepo struct {
	mu   sync.Mutex
	gens map[string]*domain.Generation
}

func newStubGenerationRepo() *stubGenerationRepo {
	return &stubGenerationRepo{gens: make(map[string]*domain.Generation)}
}

func (s *stubGenerationRepo) put(gen *domain.Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *gen
	s.gens[gen.JobID] = &copied
}

func (s *stubGenerationRepo) CreateTx(_ context.Context, _ pgx.Tx, gen *domain.Generation) error {
	s.put(gen)
	return nil
}

func (s *stubGenerationRepo) GetByJobID(_ context.Context, jobID string) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, ok := s.gens[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *gen
	return &copied, nil
}

type stubLedger struct {
	mu         sync.Mutex
	balance    int64
	balanceErr error
	txs        []domain.CreditTransaction
}

func (s *stubLedger) EnsureAccount(context.Context, string) error { return nil }

func (s *stubLedger) Debit(_ context.Context, _ pgx.Tx, _ string, amount int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balance < amount {
		return domain.ErrInsufficientCredits
	}
	s.balance -= amount
	return nil
}

func (s *stubLedger) Refund(_ context.Context, _ string, amount int64, _, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance += amount
	return true, nil
}

func (s *stubLedger) Grant(_ context.Context, _ string, amount int64, _ domain.TransactionType, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance += amount
	return nil
}

func (s *stubLedger) Balance(_ context.Context, userID string) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balanceErr != nil {
		return nil, s.balanceErr
	}
	return &domain.CreditAccount{UserID: userID, Balance: s.balance, TotalSpent: 0}, nil
}

func (s *stubLedger) ListTransactions(context.Context, string, int) ([]domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs, nil
}

var _ ledger.Service = (*stubLedger)(nil)

type stubInserter struct{}

func (stubInserter) InsertTx(context.Context, pgx.Tx, river.JobArgs, *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	return &rivertype.JobInsertResult{}, nil
}

type testApp struct {
	app    *App
	jobs   *stubJobRepo
	gens   *stubGenerationRepo
	ledger *stubLedger
	store  *storage.FileStore
}

func newTestApp(t *testing.T, balance int64) *testApp {
	t.Helper()
	jobs := newStubJobRepo()
	gens := newStubGenerationRepo()
	ledgerStub := &stubLedger{balance: balance}
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080", "test-secret")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &infra.Config{
		JWTSecret:      "test-secret",
		SignedURLTTL:   time.Hour,
		StuckThreshold: 30 * time.Minute,
		AdminUserIDs:   []string{"admin"},
	}
	svc := orchestrator.NewService(stubBeginner{}, jobs, gens, ledgerStub, stubInserter{},
		orchestrator.Costs{Image: 5, Video: 10}, zerolog.Nop())
	return &testApp{
		app: &App{
			Cfg:          cfg,
			Log:          zerolog.Nop(),
			Orchestrator: svc,
			Ledger:       ledgerStub,
			Store:        store,
		},
		jobs:   jobs,
		gens:   gens,
		ledger: ledgerStub,
		store:  store,
	}
}
