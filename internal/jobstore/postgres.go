package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuslink/portal-sync/internal/domain"
)

// PostgresStore implements Store on the sync_jobs table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresStore) Create(ctx context.Context, userID int64, kind domain.JobKind) (*domain.Job, error) {
	query := `
		INSERT INTO sync_jobs (user_id, kind, status, phase, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', NOW(), NOW())
		RETURNING id, user_id, kind, status, phase, error_message, created_at, updated_at
	`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, userID, kind, domain.JobStatusInitialized, domain.JobPhaseFetching)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Sync job created",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", userID),
		slog.String("kind", string(kind)),
	)

	return &job, nil
}

// Claim takes the row with FOR UPDATE SKIP LOCKED so a concurrent
// claimant skips instead of blocking, then transitions it out of
// INITIALIZED. Runs in its own transaction, never the caller's, so the
// claim becomes visible to other workers immediately.
func (s *PostgresStore) Claim(ctx context.Context, jobID int64) (*domain.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE sync_jobs
		SET status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM sync_jobs
			WHERE id = $2 AND status = $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, kind, status, phase, error_message, created_at, updated_at
	`

	var job domain.Job
	err = tx.GetContext(ctx, &job, query, domain.JobStatusProcessing, jobID, domain.JobStatusInitialized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Locked by another claimant or no longer INITIALIZED.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	s.logger.Info("Job claimed successfully",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", job.UserID),
		slog.String("kind", string(job.Kind)),
	)

	return &job, nil
}

func (s *PostgresStore) Transition(ctx context.Context, jobID int64, status domain.JobStatus, phase domain.JobPhase, errMsg string) error {
	query := `
		UPDATE sync_jobs
		SET status = $1, phase = $2, error_message = $3, updated_at = NOW()
		WHERE id = $4 AND status NOT IN ($5, $6)
	`

	result, err := s.db.ExecContext(ctx, query,
		status, phase, errMsg, jobID, domain.JobStatusSuccess, domain.JobStatusFail)
	if err != nil {
		return fmt.Errorf("failed to transition job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Row deleted or already terminal. Tolerated by contract.
		s.logger.Warn("Job transition had no effect",
			slog.Int64("job_id", jobID),
			slog.String("status", string(status)),
		)
		return nil
	}

	s.logger.Info("Job transitioned",
		slog.Int64("job_id", jobID),
		slog.String("status", string(status)),
		slog.String("phase", string(phase)),
	)

	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, jobID int64) (*domain.Job, error) {
	query := `
		SELECT id, user_id, kind, status, phase, error_message, created_at, updated_at
		FROM sync_jobs
		WHERE id = $1
	`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *PostgresStore) FindStale(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	query := `
		SELECT id, user_id, kind, status, phase, error_message, created_at, updated_at
		FROM sync_jobs
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
	`

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query, domain.JobStatusInitialized, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale jobs: %w", err)
	}

	return jobs, nil
}
