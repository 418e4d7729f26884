package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/adapter/repo"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/db"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra/credentials"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/ledger"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/orchestrator"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/providers"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/providers/motionforge"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/providers/pixelmuse"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("proc", "worker").Logger()

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	if err := db.Ensure(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create river migrator")
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to run river migrations")
	}

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.PublicBaseURL, cfg.StorageSignSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	creds := credentials.NewStore(pool)
	pixelKey, err := creds.APIKey(ctx, credentials.ProviderPixelMuse, cfg.PixelMuseAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve pixelmuse credentials")
	}
	forgeKey, err := creds.APIKey(ctx, credentials.ProviderMotionForge, cfg.MotionForgeAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve motionforge credentials")
	}

	images := pixelmuse.NewClient(pixelmuse.Options{
		APIKey:  pixelKey,
		BaseURL: cfg.PixelMuseBaseURL,
		Model:   cfg.PixelMuseModel,
		Logger:  &logger,
	})
	videos := motionforge.NewClient(motionforge.Options{
		APIKey:  forgeKey,
		BaseURL: cfg.MotionForgeBaseURL,
		Model:   cfg.MotionForgeModel,
		Logger:  &logger,
	})
	generators := orchestrator.Generators{
		Image:       images,
		Video:       videos,
		TextToVideo: providers.NewSeededVideoGenerator(images, videos),
	}

	jobsRepo := repo.NewJobRepository(pool)
	ledgerSvc := ledger.NewService(repo.NewAccountRepository(pool))

	workers := river.NewWorkers()
	river.AddWorker(workers, orchestrator.NewGenerateWorker(
		pool,
		jobsRepo,
		repo.NewGenerationRepository(pool),
		ledgerSvc,
		store,
		generators,
		cfg.ProviderTimeout,
		logger,
	))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.WorkerMaxJobs},
		},
		Workers: workers,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create river client")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := riverClient.Start(runCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start river client")
	}
	logger.Info().Int("max_jobs", cfg.WorkerMaxJobs).Msg("worker started")

	sweeper := orchestrator.NewSweeper(jobsRepo, ledgerSvc, cfg.SweepInterval, cfg.StuckThreshold, logger)
	go sweeper.Run(runCtx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := riverClient.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("failed to stop river client")
	}
	logger.Info().Msg("worker stopped")
}
