package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campuslink/portal-sync/internal/domain"
	"github.com/campuslink/portal-sync/internal/jobstore"
	"github.com/campuslink/portal-sync/internal/portal"
	"github.com/campuslink/portal-sync/internal/reconcile"
	"github.com/campuslink/portal-sync/internal/records"
)

// UserStore is the user/student persistence surface the runner needs.
// records.Storage is the Postgres implementation.
type UserStore interface {
	GetUserByID(ctx context.Context, userID int64) (*records.User, error)
	FindConnectedUserByStudentCode(ctx context.Context, studentCode string, excludeUserID int64) (*records.User, error)
	UpsertStudent(ctx context.Context, student records.Student) (*records.Student, error)
	AttachStudent(ctx context.Context, userID, studentID int64) error
	MarkPortalConnected(ctx context.Context, userID int64) error
	TouchLastSynced(ctx context.Context, userID int64) error
}

// RecordSyncer applies a portal snapshot to a student's stored records
// in a single transaction.
type RecordSyncer interface {
	SyncRecords(ctx context.Context, studentID int64, snap *portal.Snapshot) error
}

// CacheInvalidator drops a student's cached read views after a sync.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context, studentID int64) error
}

// EngineSyncer is the production RecordSyncer: a reconciliation engine
// run inside one records transaction.
type EngineSyncer struct {
	storage *records.Storage
	engine  *reconcile.Engine
}

// NewEngineSyncer creates a new EngineSyncer instance
func NewEngineSyncer(storage *records.Storage, engine *reconcile.Engine) *EngineSyncer {
	return &EngineSyncer{storage: storage, engine: engine}
}

func (s *EngineSyncer) SyncRecords(ctx context.Context, studentID int64, snap *portal.Snapshot) error {
	return s.storage.RunInTx(ctx, func(tx *records.TxStore) error {
		return s.engine.Run(ctx, tx, studentID, snap)
	})
}

// Runner executes one claimed job end to end: fetch the portal
// snapshot, reconcile it into the store, and drive the job row through
// its state machine. Every failure path lands the row in FAIL with the
// phase that broke; the broker message is always consumed exactly once
// regardless of outcome.
type Runner struct {
	jobs        jobstore.Store
	credentials portal.CredentialStore
	fetcher     portal.Fetcher
	users       UserStore
	syncer      RecordSyncer
	cache       CacheInvalidator
	logger      *slog.Logger
}

// RunnerConfig holds the runner's collaborators
type RunnerConfig struct {
	Jobs        jobstore.Store
	Credentials portal.CredentialStore
	Fetcher     portal.Fetcher
	Users       UserStore
	Syncer      RecordSyncer
	Cache       CacheInvalidator
	Logger      *slog.Logger
}

// NewRunner creates a new Runner instance
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		jobs:        cfg.Jobs,
		credentials: cfg.Credentials,
		fetcher:     cfg.Fetcher,
		users:       cfg.Users,
		syncer:      cfg.Syncer,
		cache:       cfg.Cache,
		logger:      cfg.Logger,
	}
}

// Process claims and executes the job named by a dispatch message. A
// nil return means the message is consumed; it does not mean the job
// succeeded, since failures are recorded on the job row itself. The
// dispatch signal is advisory: losing the claim race, or receiving a
// signal for a row that no longer exists, is a normal outcome.
func (r *Runner) Process(ctx context.Context, msg domain.DispatchMessage) error {
	job, err := r.jobs.Claim(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to claim job %d: %w", msg.JobID, err)
	}
	if job == nil {
		r.logger.Debug("Job not claimable, skipping",
			slog.Int64("job_id", msg.JobID),
		)
		return nil
	}

	r.logger.Info("Job claimed",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", job.UserID),
		slog.String("kind", string(job.Kind)),
	)

	snap, err := r.fetch(ctx, job)
	if err != nil {
		r.fail(ctx, job, domain.JobPhaseFetching, err)
		return nil
	}

	if err := r.jobs.Transition(ctx, job.ID, domain.JobStatusProcessing, domain.JobPhaseSyncing, ""); err != nil {
		return fmt.Errorf("failed to enter syncing phase for job %d: %w", job.ID, err)
	}

	if err := r.sync(ctx, job, snap); err != nil {
		r.fail(ctx, job, domain.JobPhaseSyncing, err)
		return nil
	}

	if err := r.jobs.Transition(ctx, job.ID, domain.JobStatusSuccess, domain.JobPhaseSyncing, ""); err != nil {
		return fmt.Errorf("failed to complete job %d: %w", job.ID, err)
	}

	r.logger.Info("Job completed",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", job.UserID),
	)

	return nil
}

// fetch resolves the user's cached portal credentials and scrapes a
// snapshot. An empty credential cache fails fast without touching the
// portal; a login failure additionally clears the cached credentials so
// later jobs fail fast too.
func (r *Runner) fetch(ctx context.Context, job *domain.Job) (*portal.Snapshot, error) {
	creds, found, err := r.credentials.Get(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up credentials: %w", err)
	}
	if !found {
		return nil, domain.ErrSessionExpired
	}

	snap, err := r.fetcher.Fetch(ctx, creds.Username, creds.Password)
	if err != nil {
		var portalErr *portal.Error
		if errors.As(err, &portalErr) && portalErr.Reason == portal.ReasonLoginFailed {
			if clearErr := r.credentials.Clear(ctx, job.UserID); clearErr != nil {
				r.logger.Warn("Failed to clear rejected credentials",
					slog.Int64("user_id", job.UserID),
					slog.Any("error", clearErr),
				)
			}
		}
		return nil, err
	}

	return snap, nil
}

// sync reconciles the snapshot into the store according to the job
// kind.
func (r *Runner) sync(ctx context.Context, job *domain.Job, snap *portal.Snapshot) error {
	switch job.Kind {
	case domain.JobKindInitialSync:
		return r.initialSync(ctx, job, snap)
	case domain.JobKindRefreshSync:
		return r.refreshSync(ctx, job, snap)
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
}

// initialSync connects the user to the scraped student identity and
// loads their full history. If another local user already owns the same
// external student code, the job completes without mutating anything:
// the portal account is already represented and a duplicate connection
// would fork its history.
func (r *Runner) initialSync(ctx context.Context, job *domain.Job, snap *portal.Snapshot) error {
	owner, err := r.users.FindConnectedUserByStudentCode(ctx, snap.Student.StudentCode, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to check student code ownership: %w", err)
	}
	if owner != nil {
		r.logger.Warn("Student already connected to another user, skipping sync",
			slog.Int64("job_id", job.ID),
			slog.Int64("user_id", job.UserID),
			slog.Int64("owner_user_id", owner.ID),
			slog.String("student_code", snap.Student.StudentCode),
		)
		return nil
	}

	student, err := r.upsertStudent(ctx, snap)
	if err != nil {
		return err
	}

	if err := r.users.AttachStudent(ctx, job.UserID, student.ID); err != nil {
		return fmt.Errorf("failed to attach student to user: %w", err)
	}

	if err := r.syncer.SyncRecords(ctx, student.ID, snap); err != nil {
		return fmt.Errorf("failed to reconcile records: %w", err)
	}

	if err := r.users.MarkPortalConnected(ctx, job.UserID); err != nil {
		return fmt.Errorf("failed to mark portal connected: %w", err)
	}

	if err := r.users.TouchLastSynced(ctx, job.UserID); err != nil {
		return fmt.Errorf("failed to record sync time: %w", err)
	}

	r.invalidate(ctx, student.ID)
	return nil
}

// refreshSync re-scrapes an already connected user and reconciles the
// delta.
func (r *Runner) refreshSync(ctx context.Context, job *domain.Job, snap *portal.Snapshot) error {
	user, err := r.users.GetUserByID(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !user.PortalConnected || !user.StudentID.Valid {
		return fmt.Errorf("user %d has no connected portal account", job.UserID)
	}

	student, err := r.upsertStudent(ctx, snap)
	if err != nil {
		return err
	}

	if err := r.syncer.SyncRecords(ctx, student.ID, snap); err != nil {
		return fmt.Errorf("failed to reconcile records: %w", err)
	}

	if err := r.users.TouchLastSynced(ctx, job.UserID); err != nil {
		return fmt.Errorf("failed to record sync time: %w", err)
	}

	r.invalidate(ctx, student.ID)
	return nil
}

// upsertStudent refreshes the student row from the scraped identity.
func (r *Runner) upsertStudent(ctx context.Context, snap *portal.Snapshot) (*records.Student, error) {
	student, err := r.users.UpsertStudent(ctx, records.Student{
		StudentCode: snap.Student.StudentCode,
		Name:        snap.Student.Name,
		Department:  snap.Student.Department,
		Major:       snap.Student.Major,
		GradeLevel:  snap.Student.GradeLevel,
		Status:      snap.Student.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert student: %w", err)
	}
	return student, nil
}

// invalidate drops the student's cached read views. Cache errors are
// logged, not surfaced: the store already holds the fresh data and
// cached entries expire on their own.
func (r *Runner) invalidate(ctx context.Context, studentID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateAll(ctx, studentID); err != nil {
		r.logger.Warn("Failed to invalidate cached views",
			slog.Int64("student_id", studentID),
			slog.Any("error", err),
		)
	}
}

// fail lands the job row in FAIL with the phase that broke. The
// transition itself is best effort; a terminal row stays terminal.
func (r *Runner) fail(ctx context.Context, job *domain.Job, phase domain.JobPhase, cause error) {
	r.logger.Error("Job failed",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", job.UserID),
		slog.String("phase", string(phase)),
		slog.Any("error", cause),
	)

	if err := r.jobs.Transition(ctx, job.ID, domain.JobStatusFail, phase, cause.Error()); err != nil {
		r.logger.Error("Failed to record job failure",
			slog.Int64("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}
