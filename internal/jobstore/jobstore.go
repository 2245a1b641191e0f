// Package jobstore owns the sync job lifecycle: creation, the
// exclusive claim protocol, phase transitions, and the stale-job scan
// used by the retry sweeper.
package jobstore

import (
	"context"
	"time"

	"github.com/campuslink/portal-sync/internal/domain"
)

// Store is the durable job table. The claim primitive is kept behind
// this interface so it can be backed by a row lock (Postgres), an
// atomic compare-and-swap on an in-memory map (tests, single-process
// deployments), or a distributed lease, without changing callers.
type Store interface {
	// Create inserts a job in INITIALIZED/FETCHING and returns it with
	// its store-assigned id.
	Create(ctx context.Context, userID int64, kind domain.JobKind) (*domain.Job, error)

	// Claim transitions the job to PROCESSING and returns it, but only
	// if it is still INITIALIZED and no other claimant holds the row.
	// A lost race returns (nil, nil) without waiting: at most one
	// caller ever observes a non-nil result for a given job id.
	Claim(ctx context.Context, jobID int64) (*domain.Job, error)

	// Transition updates status/phase outside the claim lock. A row
	// that is gone or already terminal is a no-op, not an error.
	Transition(ctx context.Context, jobID int64, status domain.JobStatus, phase domain.JobPhase, errMsg string) error

	// GetByID returns the job or domain.ErrJobNotFound.
	GetByID(ctx context.Context, jobID int64) (*domain.Job, error)

	// FindStale returns jobs still INITIALIZED whose creation time is
	// before the cutoff: enqueued but never claimed.
	FindStale(ctx context.Context, cutoff time.Time) ([]domain.Job, error)
}
