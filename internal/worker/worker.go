// Package worker hosts the background sync fleet: a bounded pool of
// goroutines fed by the broker consumer, the job runner they execute,
// and the retry sweeper that rescues jobs whose dispatch signal was
// lost.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Worker ties the consumer, the pool and the sweeper into one
// start/stop unit.
type Worker struct {
	logger   *slog.Logger
	pool     *Pool
	consumer *Consumer
	sweeper  *Sweeper

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Config holds worker configuration
type Config struct {
	Logger   *slog.Logger
	Pool     *Pool
	Consumer *Consumer
	Sweeper  *Sweeper
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:   cfg.Logger,
		pool:     cfg.Pool,
		consumer: cfg.Consumer,
		sweeper:  cfg.Sweeper,
	}
}

// Start begins consuming and sweeping. It blocks until the context is
// canceled or the consumer dies.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("Starting worker")

	w.pool.Start()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.sweeper.Start(ctx)
	}()

	err := w.consumer.Start(ctx)

	w.cancel()
	w.wg.Wait()

	return err
}

// Stop cancels the consumer and sweeper, then waits for in-flight jobs
// to drain from the pool.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		if w.cancel != nil {
			w.cancel()
		}
		w.pool.Stop()
		w.logger.Info("Worker stopped")
	})
}
