package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/ledger"
)

const sweepBatchSize = 100

// Sweeper reconciles jobs stranded in processing after a worker crash or
// kill: refund the charge, then fail the job. Every step is idempotent, so
// overlapping sweeps and worker races are harmless.
type Sweeper struct {
	jobs      JobRepo
	ledger    ledger.Service
	interval  time.Duration
	threshold time.Duration
	log       infra.Logger
}

// NewSweeper builds a sweeper that marks jobs stale after threshold in
// processing and scans every interval.
func NewSweeper(jobs JobRepo, ledgerSvc ledger.Service, interval, threshold time.Duration, log infra.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &Sweeper{
		jobs:      jobs,
		ledger:    ledgerSvc,
		interval:  interval,
		threshold: threshold,
		log:       log,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().
		Dur("interval", s.interval).
		Dur("threshold", s.threshold).
		Msg("reconciliation sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reconciliation sweeper stopped")
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			} else if n > 0 {
				s.log.Info().Int("settled", n).Msg("sweep settled stuck jobs")
			}
		}
	}
}

// SweepOnce settles one batch of stuck jobs and returns how many it
// settled. A job another actor settles mid-sweep is skipped, not an error.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	stuck, err := s.jobs.ListStuck(ctx, s.threshold, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, job := range stuck {
		if err := s.settle(ctx, &job); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("sweep: settle stuck job")
			continue
		}
		settled++
	}
	return settled, nil
}

func (s *Sweeper) settle(ctx context.Context, job *domain.Job) error {
	applied, err := s.ledger.Refund(ctx, job.UserID, job.CostCredits, job.ID, "job abandoned in processing")
	if err != nil {
		return err
	}
	if err := s.jobs.MarkFailed(ctx, job.ID, "the job did not finish in time; your credits were refunded"); err != nil {
		// The worker won the race and settled the job first.
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil
		}
		return err
	}
	s.log.Warn().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Bool("refund_applied", applied).
		Msg("stuck job reconciled")
	return nil
}
