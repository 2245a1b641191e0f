package jobstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campuslink/portal-sync/internal/domain"
)

// MemoryStore is an in-memory Store. The claim is a compare-and-swap
// on the job status under a single mutex, which preserves the
// lock-or-skip contract without a database. Used by tests and
// single-process deployments.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*domain.Job
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		jobs:   make(map[int64]*domain.Job),
	}
}

func (s *MemoryStore) Create(_ context.Context, userID int64, kind domain.JobKind) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	job := &domain.Job{
		ID:        s.nextID,
		UserID:    userID,
		Kind:      kind,
		Status:    domain.JobStatusInitialized,
		Phase:     domain.JobPhaseFetching,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.jobs[job.ID] = job

	cloned := *job
	return &cloned, nil
}

func (s *MemoryStore) Claim(_ context.Context, jobID int64) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusInitialized {
		return nil, nil
	}

	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = time.Now()

	cloned := *job
	return &cloned, nil
}

func (s *MemoryStore) Transition(_ context.Context, jobID int64, status domain.JobStatus, phase domain.JobPhase, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return nil
	}

	job.Status = status
	job.Phase = phase
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, jobID int64) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	cloned := *job
	return &cloned, nil
}

func (s *MemoryStore) FindStale(_ context.Context, cutoff time.Time) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []domain.Job
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusInitialized && job.CreatedAt.Before(cutoff) {
			stale = append(stale, *job)
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].CreatedAt.Before(stale[j].CreatedAt)
	})

	return stale, nil
}

// SetCreatedAt backdates a job's creation time. Test helper for
// exercising the sweeper's staleness cutoff.
func (s *MemoryStore) SetCreatedAt(jobID int64, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[jobID]; ok {
		job.CreatedAt = createdAt
	}
}
