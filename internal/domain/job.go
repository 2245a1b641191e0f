package domain

import "time"

// JobKind identifies what a sync job does with the fetched snapshot.
type JobKind string

const (
	// JobKindInitialSync links a local user to a portal student and
	// imports the full academic history for the first time.
	JobKindInitialSync JobKind = "INITIAL_SYNC"
	// JobKindRefreshSync re-imports the academic history for an
	// already-connected user.
	JobKindRefreshSync JobKind = "REFRESH_SYNC"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	return k == JobKindInitialSync || k == JobKindRefreshSync
}

// JobStatus is the lifecycle state of a sync job.
type JobStatus string

const (
	JobStatusInitialized JobStatus = "INITIALIZED"
	JobStatusProcessing  JobStatus = "PROCESSING"
	JobStatusSuccess     JobStatus = "SUCCESS"
	JobStatusFail        JobStatus = "FAIL"
)

// Terminal reports whether the status is final. Terminal jobs are
// immutable; Transition treats writes against them as no-ops.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFail
}

// JobPhase is the sub-state within an active job.
type JobPhase string

const (
	JobPhaseFetching JobPhase = "FETCHING"
	JobPhaseSyncing  JobPhase = "SYNCING"
)

// Job is one request to synchronize one user's academic data from the
// external portal. Status and phase are only written by the component
// holding an active claim on the row.
type Job struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	Kind         JobKind   `db:"kind"`
	Status       JobStatus `db:"status"`
	Phase        JobPhase  `db:"phase"`
	ErrorMessage string    `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// DispatchMessage is the advisory signal published when a job row is
// created. Delivery is at-most-once; the claim step is the real
// single-execution guarantee, and the sweeper is the durable fallback
// for lost signals.
type DispatchMessage struct {
	JobID  int64 `json:"job_id"`
	UserID int64 `json:"user_id"`
}
