package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/providers"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/storage"
)

// fakeTx satisfies pgx.Tx for code paths that only need Commit/Rollback
// bookkeeping; the repositories under test are in-memory and ignore it.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}
func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not supported")
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not supported")
}
func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}
func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                  { return nil }

type fakeBeginner struct {
	mu  sync.Mutex
	txs []*fakeTx
	err error
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tx := &fakeTx{}
	b.txs = append(b.txs, tx)
	return tx, nil
}

func (b *fakeBeginner) lastTx() *fakeTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.txs) == 0 {
		return nil
	}
	return b.txs[len(b.txs)-1]
}

// memJobRepo mirrors the guarded-UPDATE semantics of the Postgres job
// repository.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*domain.Job)}
}

func (m *memJobRepo) CreateTx(_ context.Context, _ pgx.Tx, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	copied.Status = domain.JobStatusPending
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memJobRepo) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *memJobRepo) MarkProcessing(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != domain.JobStatusPending {
		return false, nil
	}
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = time.Now()
	return true, nil
}

func (m *memJobRepo) MarkCompletedTx(_ context.Context, _ pgx.Tx, jobID, resultRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.JobStatusCompleted
	job.ResultRef = resultRef
	return nil
}

func (m *memJobRepo) MarkFailed(_ context.Context, jobID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != domain.JobStatusProcessing {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	return nil
}

func (m *memJobRepo) ListStuck(_ context.Context, olderThan time.Duration, limit int) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []domain.Job
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusProcessing && job.UpdatedAt.Before(cutoff) {
			out = append(out, *job)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memGenerationRepo struct {
	mu   sync.Mutex
	gens map[string]*domain.Generation
	err  error
}

func newMemGenerationRepo() *memGenerationRepo {
	return &memGenerationRepo{gens: make(map[string]*domain.Generation)}
}

func (m *memGenerationRepo) CreateTx(_ context.Context, _ pgx.Tx, gen *domain.Generation) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *gen
	m.gens[gen.JobID] = &copied
	return nil
}

func (m *memGenerationRepo) GetByJobID(_ context.Context, jobID string) (*domain.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.gens[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *gen
	return &copied, nil
}

// stubLedger tracks a single balance and refund set, mimicking the real
// service's idempotence.
type stubLedger struct {
	mu       sync.Mutex
	balance  int64
	refunded map[string]bool
	debits   []string
	refunds  []string
}

func newStubLedger(balance int64) *stubLedger {
	return &stubLedger{balance: balance, refunded: make(map[string]bool)}
}

func (s *stubLedger) EnsureAccount(context.Context, string) error { return nil }

func (s *stubLedger) Debit(_ context.Context, _ pgx.Tx, _ string, amount int64, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balance < amount {
		return domain.ErrInsufficientCredits
	}
	s.balance -= amount
	s.debits = append(s.debits, jobID)
	return nil
}

func (s *stubLedger) Refund(_ context.Context, _ string, amount int64, jobID, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refunded[jobID] {
		return false, nil
	}
	s.refunded[jobID] = true
	s.balance += amount
	s.refunds = append(s.refunds, jobID)
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
	return &domain.CreditAccount{UserID: userID, Balance: s.balance}, nil
}

func (s *stubLedger) ListTransactions(context.Context, string, int) ([]domain.CreditTransaction, error) {
	return nil, nil
}

type captureInserter struct {
	mu       sync.Mutex
	inserted []GenerateArgs
	opts     []*river.InsertOpts
	err      error
}

func (c *captureInserter) InsertTx(_ context.Context, _ pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserted = append(c.inserted, args.(GenerateArgs))
	c.opts = append(c.opts, opts)
	return &rivertype.JobInsertResult{}, nil
}

type memStore struct {
	mu     sync.Mutex
	files  map[storage.Ref][]byte
	putErr error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[storage.Ref][]byte)}
}

func (m *memStore) Put(_ context.Context, path string, data []byte, contentType string) (storage.Ref, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := storage.Ref(path)
	m.files[ref] = data
	return ref, nil
}

func (m *memStore) Read(ref storage.Ref) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

type stubGenerator struct {
	mu       sync.Mutex
	media    *providers.Media
	err      error
	requests []providers.Request
}

func (g *stubGenerator) Generate(_ context.Context, req providers.Request) (*providers.Media, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if g.media != nil {
		return g.media, nil
	}
	return &providers.Media{Data: []byte("media"), ContentType: "image/png"}, nil
}
