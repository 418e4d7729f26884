package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/ledger"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/providers"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/storage"
)

// MediaStore is the storage contract the worker needs: persist results,
// load input media for conditioned jobs.
type MediaStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (storage.Ref, error)
	Read(ref storage.Ref) ([]byte, error)
}

// Generators maps job types onto provider implementations. TextToVideo is
// typically a SeededVideoGenerator chaining Image into Video.
type Generators struct {
	Image       providers.Generator
	Video       providers.Generator
	TextToVideo providers.Generator
}

func (g Generators) forType(t domain.JobType) providers.Generator {
	switch t {
	case domain.JobTypeTextToImage, domain.JobTypeImageToImage:
		return g.Image
	case domain.JobTypeImageToVideo:
		return g.Video
	case domain.JobTypeTextToVideo:
		if g.TextToVideo != nil {
			return g.TextToVideo
		}
		return g.Video
	}
	return nil
}

// GenerateWorker executes one paid generation job. Failures are settled in
// place: refund first, then the terminal failed transition. Both halves are
// idempotent, so a crash between them leaves the job for the sweeper.
type GenerateWorker struct {
	river.WorkerDefaults[GenerateArgs]

	pool        TxBeginner
	jobs        JobRepo
	generations GenerationRepo
	ledger      ledger.Service
	store       MediaStore
	generators  Generators
	timeout     time.Duration
	log         infra.Logger
}

// NewGenerateWorker wires the execution path.
func NewGenerateWorker(pool TxBeginner, jobs JobRepo, generations GenerationRepo, ledgerSvc ledger.Service, store MediaStore, generators Generators, timeout time.Duration, log infra.Logger) *GenerateWorker {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &GenerateWorker{
		pool:        pool,
		jobs:        jobs,
		generations: generations,
		ledger:      ledgerSvc,
		store:       store,
		generators:  generators,
		timeout:     timeout,
		log:         log,
	}
}

// Work claims the job, runs the provider, and settles the outcome. Returning
// nil on provider failure is deliberate: the failure is already recorded on
// the job row and compensated, and the queue must not retry a paid call.
func (w *GenerateWorker) Work(ctx context.Context, rj *river.Job[GenerateArgs]) error {
	jobID := rj.Args.JobID
	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		// Duplicate delivery after the job already settled.
		return nil
	}

	claimed, err := w.jobs.MarkProcessing(ctx, jobID)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed && job.Status != domain.JobStatusProcessing {
		return nil
	}

	media, err := w.generate(ctx, job)
	if err != nil {
		return w.settleFailure(ctx, job, err)
	}
	return w.settleSuccess(ctx, job, media)
}

func (w *GenerateWorker) generate(ctx context.Context, job *domain.Job) (*providers.Media, error) {
	gen := w.generators.forType(job.Type)
	if gen == nil {
		return nil, providers.NewError(providers.KindUnexpected, "no provider configured for "+string(job.Type))
	}
	req, err := w.buildRequest(ctx, job)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return gen.Generate(ctx, req)
}

// buildRequest projects the job row onto the provider-neutral request.
func (w *GenerateWorker) buildRequest(ctx context.Context, job *domain.Job) (providers.Request, error) {
	req := providers.Request{
		JobID:       job.ID,
		Prompt:      job.Prompt,
		AspectRatio: job.Params.AspectRatio(),
	}
	if p := job.Params.Image; p != nil {
		req.Model = p.Model
		req.Seed = p.Seed
		req.NegativePrompt = p.NegativePrompt
	}
	if p := job.Params.Video; p != nil {
		req.Model = p.Model
		req.Seed = p.Seed
		req.DurationSeconds = p.DurationSeconds
	}
	if job.InputRef != "" {
		src, err := w.loadSource(ctx, job.UserID, job.InputRef)
		if err != nil {
			return providers.Request{}, err
		}
		req.SourceMedia = src
	}
	return req, nil
}

// loadSource resolves input media: an http(s) reference is passed through by
// URL, anything else is a stored reference whose bytes we inline. Stored
// refs are re-checked against the job owner's media prefix; submission
// validates this too, but the worker never reads outside the owner's prefix
// regardless of how the row was created.
func (w *GenerateWorker) loadSource(_ context.Context, userID, inputRef string) (*providers.SourceMedia, error) {
	if isRemoteRef(inputRef) {
		return &providers.SourceMedia{URL: inputRef}, nil
	}
	if !ownsStoredRef(userID, inputRef) {
		return nil, providers.Errf(providers.KindInvalidInput, "input media not found", "ref %s not under media/%s/", inputRef, userID)
	}
	data, err := w.store.Read(storage.Ref(inputRef))
	if err != nil {
		return nil, providers.Errf(providers.KindInvalidInput, "input media not found", "ref %s: %v", inputRef, err)
	}
	return &providers.SourceMedia{Ref: inputRef, Data: data}, nil
}

// settleSuccess persists the result and completes the job. The generation
// row and the terminal transition share one transaction.
func (w *GenerateWorker) settleSuccess(ctx context.Context, job *domain.Job, media *providers.Media) error {
	key := fmt.Sprintf("media/%s/%s", job.UserID, job.ID)
	ref, err := w.store.Put(ctx, key, media.Data, media.ContentType)
	if err != nil {
		return w.settleFailure(ctx, job, fmt.Errorf("store result: %w", err))
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := w.generations.CreateTx(ctx, tx, &domain.Generation{
		JobID:       job.ID,
		UserID:      job.UserID,
		MediaRef:    string(ref),
		ContentType: media.ContentType,
		Provider:    job.Provider,
		Params:      job.Params,
	}); err != nil {
		return fmt.Errorf("create generation: %w", err)
	}
	if err := w.jobs.MarkCompletedTx(ctx, tx, job.ID, string(ref)); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settle tx: %w", err)
	}

	w.log.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("result_ref", string(ref)).
		Msg("job completed")
	return nil
}

// settleFailure refunds the charge and fails the job. Refund before the
// transition: if we crash in between, the job is still processing and the
// sweeper repeats both steps safely.
func (w *GenerateWorker) settleFailure(ctx context.Context, job *domain.Job, cause error) error {
	perr := providers.AsError(cause)
	w.log.Error().
		Err(cause).
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("error_kind", string(perr.Kind)).
		Msg("job failed")

	applied, err := w.ledger.Refund(ctx, job.UserID, job.CostCredits, job.ID, string(perr.Kind))
	if err != nil {
		return fmt.Errorf("refund job %s: %w", job.ID, err)
	}
	if !applied {
		w.log.Warn().Str("job_id", job.ID).Msg("refund already applied")
	}

	if err := w.jobs.MarkFailed(ctx, job.ID, perr.UserMessage()); err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	return nil
}
