package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/portal-sync/internal/domain"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return &Storage{db: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func jobColumns() []string {
	return []string{"id", "user_id", "kind", "status", "phase", "error_message", "created_at", "updated_at"}
}

func TestGetJobByID(t *testing.T) {
	storage, mock := newMockStorage(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM sync_jobs").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(jobColumns()).
			AddRow(int64(7), int64(42), "REFRESH_SYNC", "SUCCESS", "SYNCING", "", now, now))

	job, err := storage.GetJobByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), job.ID)
	assert.Equal(t, domain.JobStatusSuccess, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobByID_NotFound(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery("SELECT (.+) FROM sync_jobs").
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows(jobColumns()))

	job, err := storage.GetJobByID(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	assert.Nil(t, job)
}

func TestListJobs_AppliesFiltersAndCursor(t *testing.T) {
	storage, mock := newMockStorage(t)
	now := time.Now()
	cursorAt := now.Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM sync_jobs WHERE 1=1 AND user_id = (.+) AND status = (.+) AND \\(created_at, id\\) < (.+) ORDER BY created_at DESC, id DESC LIMIT (.+)").
		WithArgs(int64(42), "FAIL", cursorAt, int64(10), 3).
		WillReturnRows(sqlmock.NewRows(jobColumns()).
			AddRow(int64(9), int64(42), "INITIAL_SYNC", "FAIL", "FETCHING", "portal session expired", now, now))

	jobs, err := storage.ListJobs(context.Background(), JobFilter{
		UserID:   42,
		Status:   "FAIL",
		PageSize: 2,
		Cursor:   &JobCursor{CreatedAt: cursorAt, ID: 10},
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "portal session expired", jobs[0].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobs_NoFilters(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery("SELECT (.+) FROM sync_jobs WHERE 1=1 ORDER BY created_at DESC, id DESC LIMIT (.+)").
		WithArgs(21).
		WillReturnRows(sqlmock.NewRows(jobColumns()))

	jobs, err := storage.ListJobs(context.Background(), JobFilter{PageSize: 20})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
