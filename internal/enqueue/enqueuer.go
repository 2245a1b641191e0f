// Package enqueue accepts sync requests: it writes the durable job row
// and then signals the worker fleet over the message broker. The row is
// the source of truth; the broker message is only an advisory wake-up,
// so a failed publish degrades to sweeper latency instead of losing the
// job.
package enqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/campuslink/portal-sync/internal/domain"
	"github.com/campuslink/portal-sync/internal/jobstore"
)

// Publisher sends the dispatch signal to the broker.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Enqueuer creates sync jobs and dispatches them to workers.
type Enqueuer struct {
	store     jobstore.Store
	publisher Publisher
	logger    *slog.Logger
}

// NewEnqueuer creates a new Enqueuer instance
func NewEnqueuer(store jobstore.Store, publisher Publisher, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue persists a new job and publishes its dispatch message. The
// job is returned even when the publish fails: once the row exists the
// retry sweeper will re-dispatch it.
func (e *Enqueuer) Enqueue(ctx context.Context, userID int64, kind domain.JobKind) (*domain.Job, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid job kind: %s", kind)
	}

	job, err := e.store.Create(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync job: %w", err)
	}

	e.logger.Info("Sync job created",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", userID),
		slog.String("kind", string(kind)),
	)

	if err := e.Dispatch(ctx, job); err != nil {
		e.logger.Warn("Failed to dispatch sync job, leaving it for the retry sweeper",
			slog.Int64("job_id", job.ID),
			slog.Any("error", err),
		)
	}

	return job, nil
}

// Dispatch publishes the wake-up message for an already persisted job.
// The retry sweeper uses it to re-dispatch stale jobs.
func (e *Enqueuer) Dispatch(ctx context.Context, job *domain.Job) error {
	body, err := json.Marshal(domain.DispatchMessage{
		JobID:  job.ID,
		UserID: job.UserID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch message: %w", err)
	}

	if err := e.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish dispatch message: %w", err)
	}

	return nil
}
