// Package orchestrator coordinates the job lifecycle: submission charges
// credits and enqueues work in one transaction, the worker executes against
// a provider and settles the outcome, and the sweeper reconciles jobs the
// worker abandoned.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/ledger"
)

// GenerateArgs is the queue payload for one generation job. Only the job ID
// crosses the queue; everything else is reloaded from the jobs table so the
// row stays the single source of truth.
type GenerateArgs struct {
	JobID string `json:"job_id"`
}

// Kind identifies the queue job type.
func (GenerateArgs) Kind() string { return "generate_media" }

// TxBeginner opens database transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// JobRepo is the job persistence contract the orchestrator needs.
type JobRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, job *domain.Job) error
	GetByID(ctx context.Context, jobID string) (*domain.Job, error)
	MarkProcessing(ctx context.Context, jobID string) (bool, error)
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, jobID, resultRef string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
	ListStuck(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Job, error)
}

// GenerationRepo persists the artifact row for a completed job.
type GenerationRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, gen *domain.Generation) error
	GetByJobID(ctx context.Context, jobID string) (*domain.Generation, error)
}

// JobInserter enqueues work inside the submission transaction. Satisfied by
// *river.Client[pgx.Tx].
type JobInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Providers named on job rows and in the credentials table.
const (
	ProviderNamePixelMuse   = "pixelmuse"
	ProviderNameMotionForge = "motionforge"
)

// SubmitInput is a validated-at-the-edge submission request.
type SubmitInput struct {
	UserID   string
	Type     domain.JobType
	Prompt   string
	InputRef string
	Params   domain.Params
}

// Costs carries the per-category credit prices.
type Costs struct {
	Image int64
	Video int64
}

// Service owns job submission and reads. The worker and sweeper live in
// their own types; this service is what HTTP handlers talk to.
type Service struct {
	pool        TxBeginner
	jobs        JobRepo
	generations GenerationRepo
	ledger      ledger.Service
	inserter    JobInserter
	costs       Costs
	log         infra.Logger
}

// NewService wires the submission path.
func NewService(pool TxBeginner, jobs JobRepo, generations GenerationRepo, ledgerSvc ledger.Service, inserter JobInserter, costs Costs, log infra.Logger) *Service {
	return &Service{
		pool:        pool,
		jobs:        jobs,
		generations: generations,
		ledger:      ledgerSvc,
		inserter:    inserter,
		costs:       costs,
		log:         log,
	}
}

// Submit validates the request, then atomically creates the pending job,
// debits its cost, and enqueues the work. All three commit or none do, so a
// charged job always has a queue entry and an enqueued job is always paid
// for. Validation failures cost nothing.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*domain.Job, error) {
	job, err := s.buildJob(in)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.EnsureAccount(ctx, in.UserID); err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.jobs.CreateTx(ctx, tx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.ledger.Debit(ctx, tx, job.UserID, job.CostCredits, job.ID); err != nil {
		return nil, err
	}
	// MaxAttempts 1: the worker never auto-retries, because a retry would
	// re-run a paid generation. The sweeper settles anything that dies
	// mid-flight.
	if _, err := s.inserter.InsertTx(ctx, tx, GenerateArgs{JobID: job.ID}, &river.InsertOpts{
		MaxAttempts: 1,
	}); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit submit tx: %w", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("job_type", string(job.Type)).
		Int64("cost_credits", job.CostCredits).
		Msg("job submitted")

	job.Status = domain.JobStatusPending
	return job, nil
}

// Get returns the job when it belongs to userID.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

// Generation returns the artifact row for a completed job owned by userID.
func (s *Service) Generation(ctx context.Context, userID, jobID string) (*domain.Job, *domain.Generation, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, nil, err
	}
	gen, err := s.generations.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, gen, nil
}

// ListStuck exposes jobs stranded in processing, for the monitoring endpoint.
func (s *Service) ListStuck(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Job, error) {
	return s.jobs.ListStuck(ctx, olderThan, limit)
}

func (s *Service) buildJob(in SubmitInput) (*domain.Job, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidPrompt)
	}
	if len(prompt) > domain.MaxPromptLength {
		return nil, fmt.Errorf("%w: prompt exceeds %d characters", domain.ErrInvalidPrompt, domain.MaxPromptLength)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown job type %q", domain.ErrInvalidParams, in.Type)
	}
	inputRef := strings.TrimSpace(in.InputRef)
	if in.Type.NeedsInputMedia() && inputRef == "" {
		return nil, fmt.Errorf("%w: %s requires input media", domain.ErrInvalidParams, in.Type)
	}
	if !in.Type.NeedsInputMedia() && inputRef != "" {
		return nil, fmt.Errorf("%w: %s does not accept input media", domain.ErrInvalidParams, in.Type)
	}
	if inputRef != "" && !isRemoteRef(inputRef) && !ownsStoredRef(in.UserID, inputRef) {
		return nil, fmt.Errorf("%w: input media not found", domain.ErrInvalidParams)
	}

	params := in.Params
	if params.Image == nil && params.Video == nil {
		// Callers may omit params entirely; default the matching branch.
		if in.Type.IsVideo() {
			params.Video = &domain.VideoParams{}
		} else {
			params.Image = &domain.ImageParams{}
		}
	}
	params.Normalize()
	if err := params.Validate(in.Type); err != nil {
		return nil, err
	}

	cost := s.costs.Image
	provider := ProviderNamePixelMuse
	if in.Type.IsVideo() {
		cost = s.costs.Video
		provider = ProviderNameMotionForge
	}
	if cost <= 0 {
		return nil, fmt.Errorf("%w: no cost configured for %s", domain.ErrInvalidParams, in.Type)
	}

	return &domain.Job{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Type:        in.Type,
		Prompt:      prompt,
		InputRef:    inputRef,
		Provider:    provider,
		CostCredits: cost,
		Status:      domain.JobStatusPending,
		Params:      params,
	}, nil
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// ownsStoredRef reports whether a stored media reference lies under the
// user's own media prefix. Stored results are keyed media/{userID}/{jobID},
// so anything outside that prefix belongs to someone else.
func ownsStoredRef(userID, ref string) bool {
	return userID != "" && strings.HasPrefix(ref, "media/"+userID+"/")
}

// IsValidationError reports whether err is a request-shape failure rather
// than an infrastructure one, so handlers can pick the status code.
func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidPrompt) || errors.Is(err, domain.ErrInvalidParams)
}
