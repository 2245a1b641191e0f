package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/campuslink/portal-sync/internal/domain"
	"github.com/campuslink/portal-sync/internal/jobstore"
)

// Dispatcher re-publishes the wake-up signal for a persisted job.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.Job) error
}

// Sweeper is the durable fallback for lost dispatch signals. The
// broker message is advisory only; any job still INITIALIZED after
// staleAfter was either never signaled or its signal was dropped, and
// the sweeper re-dispatches it. Re-dispatching a job that is being
// claimed concurrently is harmless: the claim protocol admits at most
// one winner.
type Sweeper struct {
	jobs       jobstore.Store
	dispatcher Dispatcher
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
}

// SweeperConfig holds the sweeper's collaborators
type SweeperConfig struct {
	Jobs       jobstore.Store
	Dispatcher Dispatcher
	Interval   time.Duration
	StaleAfter time.Duration
	Logger     *slog.Logger
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		jobs:       cfg.Jobs,
		dispatcher: cfg.Dispatcher,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		logger:     cfg.Logger,
	}
}

// Start sweeps on the configured interval until the context is
// canceled.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Retry sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("stale_after", s.staleAfter),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Retry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: find stale INITIALIZED jobs and re-dispatch
// them. Exported so tests and operator tooling can trigger a pass
// directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.staleAfter)

	stale, err := s.jobs.FindStale(ctx, cutoff)
	if err != nil {
		s.logger.Error("Stale job scan failed",
			slog.Any("error", err),
		)
		return
	}
	if len(stale) == 0 {
		return
	}

	s.logger.Info("Re-dispatching stale jobs",
		slog.Int("count", len(stale)),
	)

	for i := range stale {
		job := &stale[i]
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.logger.Error("Failed to re-dispatch stale job",
				slog.Int64("job_id", job.ID),
				slog.Any("error", err),
			)
			continue
		}

		s.logger.Info("Stale job re-dispatched",
			slog.Int64("job_id", job.ID),
			slog.Int64("user_id", job.UserID),
			slog.Time("created_at", job.CreatedAt),
		)
	}
}
