package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/portal-sync/internal/api/dto"
	"github.com/campuslink/portal-sync/internal/api/storage"
	"github.com/campuslink/portal-sync/internal/domain"
	"github.com/campuslink/portal-sync/internal/portal"
)

type fakeEnqueuer struct {
	jobs   []*domain.Job
	err    error
	nextID int64
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, userID int64, kind domain.JobKind) (*domain.Job, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.nextID++
	job := &domain.Job{
		ID:        e.nextID,
		UserID:    userID,
		Kind:      kind,
		Status:    domain.JobStatusInitialized,
		Phase:     domain.JobPhaseFetching,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	e.jobs = append(e.jobs, job)
	return job, nil
}

type fakeQueries struct {
	jobs []domain.Job
}

func (q *fakeQueries) GetJobByID(_ context.Context, jobID int64) (*domain.Job, error) {
	for i := range q.jobs {
		if q.jobs[i].ID == jobID {
			return &q.jobs[i], nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (q *fakeQueries) ListJobs(_ context.Context, filter storage.JobFilter) ([]domain.Job, error) {
	var out []domain.Job
	for _, job := range q.jobs {
		if filter.UserID > 0 && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && string(job.Status) != filter.Status {
			continue
		}
		if filter.Cursor != nil && job.ID >= filter.Cursor.ID {
			continue
		}
		out = append(out, job)
		if len(out) == filter.PageSize+1 {
			break
		}
	}
	return out, nil
}

type fakeCredentials struct {
	saved map[int64]portal.Credentials
	err   error
}

func (c *fakeCredentials) Save(_ context.Context, userID int64, creds portal.Credentials) error {
	if c.err != nil {
		return c.err
	}
	if c.saved == nil {
		c.saved = make(map[int64]portal.Credentials)
	}
	c.saved[userID] = creds
	return nil
}

type handlerFixture struct {
	enqueuer    *fakeEnqueuer
	queries     *fakeQueries
	credentials *fakeCredentials
	handler     *SyncHandler
}

func newHandlerFixture() *handlerFixture {
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		enqueuer:    &fakeEnqueuer{},
		queries:     &fakeQueries{},
		credentials: &fakeCredentials{},
	}
	f.handler = NewSyncHandler(&Dependencies{
		Logger:      slog.New(slog.DiscardHandler),
		Enqueuer:    f.enqueuer,
		Queries:     f.queries,
		Credentials: f.credentials,
	})
	return f
}

func performJSON(h gin.HandlerFunc, method, target, body string, params ...gin.Param) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params

	h(c)
	// Flush the status code for handlers that never write a body;
	// gin defers WriteHeader until the first write otherwise.
	c.Writer.WriteHeaderNow()
	return w
}

func TestCreateSync(t *testing.T) {
	f := newHandlerFixture()

	w := performJSON(f.handler.CreateSync, http.MethodPost, "/api/v1/sync",
		`{"user_id": 42, "kind": "INITIAL_SYNC"}`)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.UserID)
	assert.Equal(t, "INITIAL_SYNC", resp.Kind)
	assert.Equal(t, "INITIALIZED", resp.Status)
	assert.Equal(t, "FETCHING", resp.Phase)
}

func TestCreateSync_RejectsUnknownKind(t *testing.T) {
	f := newHandlerFixture()

	w := performJSON(f.handler.CreateSync, http.MethodPost, "/api/v1/sync",
		`{"user_id": 42, "kind": "BULK_SYNC"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.enqueuer.jobs)
}

func TestCreateSync_RejectsMissingFields(t *testing.T) {
	f := newHandlerFixture()

	w := performJSON(f.handler.CreateSync, http.MethodPost, "/api/v1/sync", `{"kind": "INITIAL_SYNC"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJob(t *testing.T) {
	f := newHandlerFixture()
	f.queries.jobs = []domain.Job{
		{
			ID:        7,
			UserID:    42,
			Kind:      domain.JobKindRefreshSync,
			Status:    domain.JobStatusFail,
			Phase:     domain.JobPhaseFetching,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}
	f.queries.jobs[0].ErrorMessage = "portal session expired"

	w := performJSON(f.handler.GetJob, http.MethodGet, "/api/v1/sync/jobs/7", "",
		gin.Param{Key: "job_id", Value: "7"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.JobID)
	assert.Equal(t, "FAIL", resp.Status)
	assert.Equal(t, "portal session expired", resp.ErrorMessage)
}

func TestGetJob_NotFound(t *testing.T) {
	f := newHandlerFixture()

	w := performJSON(f.handler.GetJob, http.MethodGet, "/api/v1/sync/jobs/999", "",
		gin.Param{Key: "job_id", Value: "999"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJob_RejectsBadID(t *testing.T) {
	f := newHandlerFixture()

	w := performJSON(f.handler.GetJob, http.MethodGet, "/api/v1/sync/jobs/abc", "",
		gin.Param{Key: "job_id", Value: "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobs_Paginates(t *testing.T) {
	f := newHandlerFixture()
	now := time.Now()
	for i := 5; i >= 1; i-- {
		f.queries.jobs = append(f.queries.jobs, domain.Job{
			ID:        int64(i),
			UserID:    1,
			Kind:      domain.JobKindRefreshSync,
			Status:    domain.JobStatusSuccess,
			Phase:     domain.JobPhaseSyncing,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			UpdatedAt: now,
		})
	}

	w := performJSON(f.handler.ListJobs, http.MethodGet, "/api/v1/sync/jobs?page_size=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 2)
	require.NotEmpty(t, resp.NextCursor)
	assert.Equal(t, int64(5), resp.Jobs[0].JobID)

	// Follow the cursor: the next page starts after the last job of
	// the first page.
	target := fmt.Sprintf("/api/v1/sync/jobs?page_size=2&cursor=%s", resp.NextCursor)
	w = performJSON(f.handler.ListJobs, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, int64(3), resp.Jobs[0].JobID)
}

func TestListJobs_RejectsBadCursor(t *testing.T) {
	f := newHandlerFixture()

	w := performJSON(f.handler.ListJobs, http.MethodGet, "/api/v1/sync/jobs?cursor=%21%21not-base64", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveCredentials(t *testing.T) {
	f := newHandlerFixture()

	w := performJSON(f.handler.SaveCredentials, http.MethodPost, "/api/v1/credentials",
		`{"user_id": 42, "username": "student", "password": "hunter2"}`)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, portal.Credentials{Username: "student", Password: "hunter2"}, f.credentials.saved[42])
}

func TestSaveCredentials_RejectsMissingFields(t *testing.T) {
	f := newHandlerFixture()

	w := performJSON(f.handler.SaveCredentials, http.MethodPost, "/api/v1/credentials",
		`{"user_id": 42, "username": "student"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.credentials.saved)
}

func TestJobCursorRoundTrip(t *testing.T) {
	original := &storage.JobCursor{
		CreatedAt: time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC),
		ID:        1234,
	}

	encoded, err := EncodeJobCursor(original)
	require.NoError(t, err)

	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, original.ID, decoded.ID)
}

func TestDecodeJobCursor_Empty(t *testing.T) {
	decoded, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}
