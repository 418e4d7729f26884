package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/providers"
)

type workerFixture struct {
	worker *GenerateWorker
	jobs   *memJobRepo
	gens   *memGenerationRepo
	ledger *stubLedger
	store  *memStore
	image  *stubGenerator
	video  *stubGenerator
}

func newWorkerFixture(balance int64) *workerFixture {
	jobs := newMemJobRepo()
	gens := newMemGenerationRepo()
	ledgerStub := newStubLedger(balance)
	store := newMemStore()
	image := &stubGenerator{}
	video := &stubGenerator{media: &providers.Media{Data: []byte("vid"), ContentType: "video/mp4"}}
	worker := NewGenerateWorker(&fakeBeginner{}, jobs, gens, ledgerStub, store,
		Generators{Image: image, Video: video, TextToVideo: video},
		time.Minute, zerolog.Nop())
	return &workerFixture{worker: worker, jobs: jobs, gens: gens, ledger: ledgerStub, store: store, image: image, video: video}
}

func (f *workerFixture) seedJob(t *testing.T, job *domain.Job) {
	t.Helper()
	if err := f.jobs.CreateTx(context.Background(), nil, job); err != nil {
		t.Fatal(err)
	}
}

func riverJob(jobID string) *river.Job[GenerateArgs] {
	return &river.Job[GenerateArgs]{Args: GenerateArgs{JobID: jobID}}
}

func TestWorkerHappyPath(t *testing.T) {
	f := newWorkerFixture(45)
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeTextToImage,
		Prompt: "a fox", CostCredits: 5, Provider: ProviderNamePixelMuse,
		Params: domain.Params{Image: &domain.ImageParams{AspectRatio: "1:1", Seed: 7}},
	})

	if err := f.worker.Work(context.Background(), riverJob("j1")); err != nil {
		t.Fatal(err)
	}

	job, err := f.jobs.GetByID(context.Background(), "j1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.ResultRef == "" {
		t.Fatal("completed job has no result ref")
	}
	gen, err := f.gens.GetByJobID(context.Background(), "j1")
	if err != nil {
		t.Fatalf("generation row missing: %v", err)
	}
	if gen.ContentType != "image/png" {
		t.Fatalf("content type = %s", gen.ContentType)
	}
	if f.ledger.balance != 45 {
		t.Fatalf("success touched the ledger: %d", f.ledger.balance)
	}
	if len(f.image.requests) != 1 || f.image.requests[0].Seed != 7 {
		t.Fatalf("provider request = %+v", f.image.requests)
	}
}

func TestWorkerProviderFailureRefundsAndFails(t *testing.T) {
	f := newWorkerFixture(40)
	f.image.err = providers.NewError(providers.KindRateLimited, "slow down")
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeTextToImage,
		Prompt: "a fox", CostCredits: 10, Provider: ProviderNamePixelMuse,
		Params: domain.Params{Image: &domain.ImageParams{AspectRatio: "1:1"}},
	})

	if err := f.worker.Work(context.Background(), riverJob("j1")); err != nil {
		t.Fatal(err)
	}

	job, _ := f.jobs.GetByID(context.Background(), "j1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "rate limiting") {
		t.Fatalf("error message %q does not mention rate limiting", job.ErrorMessage)
	}
	if f.ledger.balance != 50 {
		t.Fatalf("balance = %d, want refund back to 50", f.ledger.balance)
	}
	if len(f.ledger.refunds) != 1 || f.ledger.refunds[0] != "j1" {
		t.Fatalf("refunds = %v", f.ledger.refunds)
	}
}

func TestWorkerPersistenceFailureLeavesJobForSweeper(t *testing.T) {
	f := newWorkerFixture(40)
	f.gens.err = errors.New("disk full")
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeTextToImage,
		Prompt: "a fox", CostCredits: 10, Provider: ProviderNamePixelMuse,
		Params: domain.Params{Image: &domain.ImageParams{AspectRatio: "1:1"}},
	})

	// The worker surfaces the settle error; the job stays processing for
	// the sweeper, which refunds it.
	if err := f.worker.Work(context.Background(), riverJob("j1")); err == nil {
		t.Fatal("expected settle error")
	}
	job, _ := f.jobs.GetByID(context.Background(), "j1")
	if job.Status != domain.JobStatusProcessing {
		t.Fatalf("status = %s, want processing for the sweeper", job.Status)
	}
}

func TestWorkerStoreFailureRefundsAndFails(t *testing.T) {
	f := newWorkerFixture(40)
	f.store.putErr = errors.New("disk full")
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeTextToImage,
		Prompt: "a fox", CostCredits: 10, Provider: ProviderNamePixelMuse,
		Params: domain.Params{Image: &domain.ImageParams{AspectRatio: "1:1"}},
	})

	if err := f.worker.Work(context.Background(), riverJob("j1")); err != nil {
		t.Fatal(err)
	}
	job, _ := f.jobs.GetByID(context.Background(), "j1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if f.ledger.balance != 50 {
		t.Fatalf("balance = %d, want 50", f.ledger.balance)
	}
}

func TestWorkerSkipsTerminalJob(t *testing.T) {
	f := newWorkerFixture(40)
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeTextToImage,
		Prompt: "a fox", CostCredits: 10, Provider: ProviderNamePixelMuse,
		Params: domain.Params{Image: &domain.ImageParams{AspectRatio: "1:1"}},
	})
	if _, err := f.jobs.MarkProcessing(context.Background(), "j1"); err != nil {
		t.Fatal(err)
	}
	if err := f.jobs.MarkFailed(context.Background(), "j1", "already settled"); err != nil {
		t.Fatal(err)
	}

	if err := f.worker.Work(context.Background(), riverJob("j1")); err != nil {
		t.Fatal(err)
	}
	if len(f.image.requests) != 0 {
		t.Fatal("terminal job reached the provider")
	}
	job, _ := f.jobs.GetByID(context.Background(), "j1")
	if job.Status != domain.JobStatusFailed || job.ErrorMessage != "already settled" {
		t.Fatalf("terminal job mutated: %+v", job)
	}
}

func TestWorkerVideoJobUsesVideoGenerator(t *testing.T) {
	f := newWorkerFixture(40)
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeTextToVideo,
		Prompt: "waves", CostCredits: 10, Provider: ProviderNameMotionForge,
		Params: domain.Params{Video: &domain.VideoParams{AspectRatio: "16:9", DurationSeconds: 6}},
	})

	if err := f.worker.Work(context.Background(), riverJob("j1")); err != nil {
		t.Fatal(err)
	}
	if len(f.video.requests) != 1 {
		t.Fatalf("video generator called %d times", len(f.video.requests))
	}
	if req := f.video.requests[0]; req.DurationSeconds != 6 || req.AspectRatio != "16:9" {
		t.Fatalf("request = %+v", req)
	}
	gen, err := f.gens.GetByJobID(context.Background(), "j1")
	if err != nil {
		t.Fatal(err)
	}
	if gen.ContentType != "video/mp4" {
		t.Fatalf("content type = %s", gen.ContentType)
	}
}

func TestWorkerLoadsStoredInputMedia(t *testing.T) {
	f := newWorkerFixture(40)
	if _, err := f.store.Put(context.Background(), "media/u1/source.png", []byte("frame"), "image/png"); err != nil {
		t.Fatal(err)
	}
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeImageToVideo,
		Prompt: "animate", InputRef: "media/u1/source.png",
		CostCredits: 10, Provider: ProviderNameMotionForge,
		Params: domain.Params{Video: &domain.VideoParams{AspectRatio: "1:1", DurationSeconds: 4}},
	})

	if err := f.worker.Work(context.Background(), riverJob("j1")); err != nil {
		t.Fatal(err)
	}
	if len(f.video.requests) != 1 {
		t.Fatal("video generator not called")
	}
	src := f.video.requests[0].SourceMedia
	if src == nil || string(src.Data) != "frame" {
		t.Fatalf("source media = %+v", src)
	}
}

func TestWorkerForeignInputRefFailsWithRefund(t *testing.T) {
	f := newWorkerFixture(40)
	if _, err := f.store.Put(context.Background(), "media/u2/secret.png", []byte("u2-bytes"), "image/png"); err != nil {
		t.Fatal(err)
	}
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeImageToVideo,
		Prompt: "animate", InputRef: "media/u2/secret.png",
		CostCredits: 10, Provider: ProviderNameMotionForge,
		Params: domain.Params{Video: &domain.VideoParams{AspectRatio: "1:1"}},
	})

	if err := f.worker.Work(context.Background(), riverJob("j1")); err != nil {
		t.Fatal(err)
	}
	if len(f.video.requests) != 0 {
		t.Fatalf("another user's media reached the provider: %+v", f.video.requests)
	}
	job, _ := f.jobs.GetByID(context.Background(), "j1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if f.ledger.balance != 50 {
		t.Fatalf("balance = %d, want 50", f.ledger.balance)
	}
}

func TestWorkerMissingInputMediaFailsWithRefund(t *testing.T) {
	f := newWorkerFixture(40)
	f.seedJob(t, &domain.Job{
		ID: "j1", UserID: "u1", Type: domain.JobTypeImageToVideo,
		Prompt: "animate", InputRef: "media/u1/missing.png",
		CostCredits: 10, Provider: ProviderNameMotionForge,
		Params: domain.Params{Video: &domain.VideoParams{AspectRatio: "1:1"}},
	})

	if err := f.worker.Work(context.Background(), riverJob("j1")); err != nil {
		t.Fatal(err)
	}
	job, _ := f.jobs.GetByID(context.Background(), "j1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if f.ledger.balance != 50 {
		t.Fatalf("balance = %d, want 50", f.ledger.balance)
	}
}
