package worker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(min, max, backlog int) *Pool {
	return NewPool(PoolConfig{
		Logger:      slog.New(slog.DiscardHandler),
		MinWorkers:  min,
		MaxWorkers:  max,
		Backlog:     backlog,
		IdleTimeout: 50 * time.Millisecond,
	})
}

func TestPool_RunsAllSubmittedTasks(t *testing.T) {
	pool := newTestPool(2, 4, 8)
	pool.Start()

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Submit(func() {
			atomic.AddInt64(&done, 1)
			wg.Done()
		})
	}

	wg.Wait()
	pool.Stop()
	assert.Equal(t, int64(100), atomic.LoadInt64(&done))
}

func TestPool_CallerRunsOnSaturation(t *testing.T) {
	// One worker, one backlog slot, no growth headroom. Blocking the
	// worker and filling the backlog forces the third submit to run
	// inline on this goroutine.
	pool := newTestPool(1, 1, 1)
	pool.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		<-release
	})
	<-started

	pool.Submit(func() { <-release }) // parks in the backlog

	ran := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		pool.Submit(func() { close(ran) })
		close(finished)
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("saturated submit did not run the task on the caller")
	}
	<-finished

	close(release)
	pool.Stop()
}

func TestPool_GrowsUnderLoad(t *testing.T) {
	pool := newTestPool(1, 4, 1)
	pool.Start()

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go pool.Submit(func() {
			defer wg.Done()
			<-release
		})
	}

	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return pool.workers > 1
	}, 2*time.Second, 10*time.Millisecond, "pool should grow beyond the core")

	close(release)
	wg.Wait()
	pool.Stop()
}

func TestPool_ExtraWorkersRetire(t *testing.T) {
	pool := newTestPool(1, 4, 1)
	pool.Start()

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go pool.Submit(func() {
			defer wg.Done()
			<-release
		})
	}
	close(release)
	wg.Wait()

	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return pool.workers == 1
	}, 2*time.Second, 20*time.Millisecond, "extra workers should retire back to the core size")

	pool.Stop()
}

func TestPool_StopDrainsBacklog(t *testing.T) {
	pool := newTestPool(1, 1, 8)
	pool.Start()

	var done int64
	for i := 0; i < 8; i++ {
		pool.Submit(func() {
			atomic.AddInt64(&done, 1)
		})
	}

	pool.Stop()
	assert.Equal(t, int64(8), atomic.LoadInt64(&done))
}
