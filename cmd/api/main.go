package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/adapter/repo"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/db"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/http/handlers"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/http/httpapi"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra/geoip"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/ledger"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/orchestrator"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

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

	// Insert-only river client: the API enqueues inside the submission
	// transaction but never works jobs. cmd/worker runs the workers.
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create river client")
	}

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.PublicBaseURL, cfg.StorageSignSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	countries, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer countries.Close()

	ledgerSvc := ledger.NewService(repo.NewAccountRepository(pool))
	orchestratorSvc := orchestrator.NewService(
		pool,
		repo.NewJobRepository(pool),
		repo.NewGenerationRepository(pool),
		ledgerSvc,
		riverClient,
		orchestrator.Costs{Image: cfg.ImageCostCredits, Video: cfg.VideoCostCredits},
		logger,
	)

	app := &handlers.App{
		Cfg:          cfg,
		Log:          logger,
		Orchestrator: orchestratorSvc,
		Ledger:       ledgerSvc,
		Store:        store,
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, countries))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
