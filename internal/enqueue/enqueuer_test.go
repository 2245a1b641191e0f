package enqueue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/portal-sync/internal/domain"
	"github.com/campuslink/portal-sync/internal/jobstore"
)

type fakePublisher struct {
	published [][]byte
	err       error
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, body []byte, _ string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, body)
	return nil
}

func TestEnqueue(t *testing.T) {
	store := jobstore.NewMemoryStore()
	publisher := &fakePublisher{}
	enqueuer := NewEnqueuer(store, publisher, slog.New(slog.DiscardHandler))

	job, err := enqueuer.Enqueue(context.Background(), 42, domain.JobKindInitialSync)
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, domain.JobStatusInitialized, job.Status)
	assert.Equal(t, domain.JobPhaseFetching, job.Phase)

	require.Len(t, publisher.published, 1)
	var msg domain.DispatchMessage
	require.NoError(t, json.Unmarshal(publisher.published[0], &msg))
	assert.Equal(t, job.ID, msg.JobID)
	assert.Equal(t, int64(42), msg.UserID)
}

func TestEnqueue_InvalidKind(t *testing.T) {
	store := jobstore.NewMemoryStore()
	enqueuer := NewEnqueuer(store, &fakePublisher{}, slog.New(slog.DiscardHandler))

	job, err := enqueuer.Enqueue(context.Background(), 42, domain.JobKind("BULK_SYNC"))
	assert.Error(t, err)
	assert.Nil(t, job)
}

func TestEnqueue_PublishFailureKeepsJob(t *testing.T) {
	// The job row survives a broker outage; the sweeper re-dispatches
	// it later, so Enqueue must not surface the publish error.
	store := jobstore.NewMemoryStore()
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	enqueuer := NewEnqueuer(store, publisher, slog.New(slog.DiscardHandler))

	job, err := enqueuer.Enqueue(context.Background(), 7, domain.JobKindRefreshSync)
	require.NoError(t, err)
	require.NotNil(t, job)

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusInitialized, stored.Status)
}
