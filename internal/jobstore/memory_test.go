package jobstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/portal-sync/internal/domain"
)

func TestMemoryStore_ClaimExclusivity(t *testing.T) {
	// N workers race the same job id; at most one may win the claim.
	store := NewMemoryStore()
	ctx := context.Background()

	job, err := store.Create(ctx, 42, domain.JobKindRefreshSync)
	require.NoError(t, err)

	const workers = 64

	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.Claim(ctx, job.ID)
			assert.NoError(t, err)
			if claimed != nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
}

func TestMemoryStore_ClaimUnknownJob(t *testing.T) {
	store := NewMemoryStore()

	claimed, err := store.Claim(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestMemoryStore_TransitionTerminalIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job, err := store.Create(ctx, 1, domain.JobKindInitialSync)
	require.NoError(t, err)

	_, err = store.Claim(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, store.Transition(ctx, job.ID, domain.JobStatusSuccess, domain.JobPhaseSyncing, ""))

	// Terminal states are immutable.
	require.NoError(t, store.Transition(ctx, job.ID, domain.JobStatusFail, domain.JobPhaseSyncing, "late failure"))

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestMemoryStore_TransitionMissingJobIsNoOp(t *testing.T) {
	store := NewMemoryStore()

	err := store.Transition(context.Background(), 123, domain.JobStatusFail, domain.JobPhaseFetching, "boom")
	assert.NoError(t, err)
}

func TestMemoryStore_FindStale(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	oldJob, err := store.Create(ctx, 1, domain.JobKindRefreshSync)
	require.NoError(t, err)
	store.SetCreatedAt(oldJob.ID, now.Add(-6*time.Minute))

	freshJob, err := store.Create(ctx, 2, domain.JobKindRefreshSync)
	require.NoError(t, err)
	store.SetCreatedAt(freshJob.ID, now.Add(-30*time.Second))

	claimedJob, err := store.Create(ctx, 3, domain.JobKindRefreshSync)
	require.NoError(t, err)
	store.SetCreatedAt(claimedJob.ID, now.Add(-time.Hour))
	_, err = store.Claim(ctx, claimedJob.ID)
	require.NoError(t, err)

	stale, err := store.FindStale(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, oldJob.ID, stale[0].ID)
}

func TestMemoryStore_CreateAssignsMonotonicIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Create(ctx, 1, domain.JobKindInitialSync)
	require.NoError(t, err)
	second, err := store.Create(ctx, 1, domain.JobKindRefreshSync)
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, domain.JobStatusInitialized, first.Status)
	assert.Equal(t, domain.JobPhaseFetching, first.Phase)
}
