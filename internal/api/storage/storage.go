// Package storage is the API service's read surface over the job
// table. Writes go through the enqueuer; this package only answers
// status queries.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuslink/portal-sync/internal/domain"
	"github.com/campuslink/portal-sync/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// GetJobByID returns one job or domain.ErrJobNotFound.
func (s *Storage) GetJobByID(ctx context.Context, jobID int64) (*domain.Job, error) {
	var job domain.Job
	query := `
		SELECT id, user_id, kind, status, phase, error_message, created_at, updated_at
		FROM sync_jobs
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	UserID   int64
	Kind     string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is a keyset pagination position on (created_at, id)
// descending.
type JobCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListJobs returns up to PageSize+1 jobs matching the filter, newest
// first. The extra row tells the caller whether a next page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
		SELECT id, user_id, kind, status, phase, error_message, created_at, updated_at
		FROM sync_jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID > 0 {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
