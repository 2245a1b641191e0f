package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a unit of work submitted to the pool.
type Task func()

// PoolConfig holds worker pool configuration
type PoolConfig struct {
	Logger      *slog.Logger
	MinWorkers  int
	MaxWorkers  int
	Backlog     int
	IdleTimeout time.Duration
}

// Pool is a bounded worker pool. A fixed core of MinWorkers goroutines
// drains a backlog channel; when the backlog is full the pool grows up
// to MaxWorkers, and when both the backlog and the growth budget are
// exhausted the submitting goroutine runs the task itself. That
// caller-runs overflow turns saturation into backpressure on the
// consumer instead of unbounded queueing.
type Pool struct {
	logger      *slog.Logger
	minWorkers  int
	maxWorkers  int
	idleTimeout time.Duration

	tasks    chan Task
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	workers int
}

// NewPool creates a new Pool instance
func NewPool(cfg PoolConfig) *Pool {
	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}

	return &Pool{
		logger:      cfg.Logger,
		minWorkers:  cfg.MinWorkers,
		maxWorkers:  cfg.MaxWorkers,
		idleTimeout: idleTimeout,
		tasks:       make(chan Task, cfg.Backlog),
		stopChan:    make(chan struct{}),
	}
}

// Start spawns the core workers.
func (p *Pool) Start() {
	p.logger.Info("Starting worker pool",
		slog.Int("min_workers", p.minWorkers),
		slog.Int("max_workers", p.maxWorkers),
		slog.Int("backlog", cap(p.tasks)),
	)

	p.mu.Lock()
	for i := 0; i < p.minWorkers; i++ {
		p.spawnLocked(fmt.Sprintf("core-%d", i), true)
	}
	p.mu.Unlock()
}

// Submit hands a task to the pool. It never blocks on the backlog:
// overflow either grows the pool or runs the task on the calling
// goroutine.
func (p *Pool) Submit(task Task) {
	select {
	case p.tasks <- task:
		return
	default:
	}

	if p.tryGrow() {
		select {
		case p.tasks <- task:
			return
		default:
		}
	}

	p.logger.Warn("Worker pool saturated, running task on submitter")
	task()
}

// tryGrow spawns one extra worker if the pool is below MaxWorkers.
func (p *Pool) tryGrow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.workers >= p.maxWorkers {
		return false
	}

	name := fmt.Sprintf("extra-%d", p.workers)
	p.spawnLocked(name, false)

	p.logger.Debug("Worker pool grew",
		slog.String("worker_name", name),
		slog.Int("workers", p.workers),
	)

	return true
}

func (p *Pool) spawnLocked(name string, core bool) {
	p.workers++
	p.wg.Add(1)
	go p.workerLoop(name, core)
}

// workerLoop drains the backlog. Core workers live for the pool's
// lifetime; extra workers retire after idleTimeout without a task.
func (p *Pool) workerLoop(name string, core bool) {
	defer func() {
		p.mu.Lock()
		p.workers--
		p.mu.Unlock()
		p.wg.Done()
	}()

	var idle *time.Timer
	if !core {
		idle = time.NewTimer(p.idleTimeout)
		defer idle.Stop()
	}

	for {
		if core {
			select {
			case <-p.stopChan:
				p.drainRemaining(name)
				return
			case task, ok := <-p.tasks:
				if !ok {
					return
				}
				task()
			}
		} else {
			select {
			case <-p.stopChan:
				p.drainRemaining(name)
				return
			case task, ok := <-p.tasks:
				if !ok {
					return
				}
				task()
				if !idle.Stop() {
					<-idle.C
				}
				idle.Reset(p.idleTimeout)
			case <-idle.C:
				p.logger.Debug("Idle extra worker retiring",
					slog.String("worker_name", name),
				)
				return
			}
		}
	}
}

// drainRemaining finishes tasks already accepted into the backlog so a
// graceful stop does not strand acknowledged work.
func (p *Pool) drainRemaining(name string) {
	for {
		select {
		case task := <-p.tasks:
			task()
		default:
			p.logger.Debug("Worker goroutine stopping",
				slog.String("worker_name", name),
			)
			return
		}
	}
}

// Stop waits for in-flight and backlogged tasks to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}
