// Package store holds the job records. Every implementation applies a status
// transition as a single atomic write and hands out copies only.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"adforge/internal/domain"
)

// MemoryStore keeps jobs for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts all jobs or none.
func (s *MemoryStore) Create(ctx context.Context, jobs []domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		if err := validateNew(job); err != nil {
			return err
		}
		if _, exists := s.jobs[job.ID]; exists {
			return fmt.Errorf("store: job %s already exists", job.ID)
		}
	}
	for _, job := range jobs {
		s.jobs[job.ID] = job
	}
	return nil
}

// Transition moves a job forward and returns the updated copy.
func (s *MemoryStore) Transition(ctx context.Context, jobID string, update domain.JobUpdate) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("store: job %s: %w", jobID, domain.ErrNotFound)
	}
	if !domain.CanTransition(job.Status, update.Status) {
		return domain.Job{}, fmt.Errorf("store: job %s %s -> %s: %w", jobID, job.Status, update.Status, domain.ErrInvalidTransition)
	}
	job = update.Apply(job, s.now())
	s.jobs[jobID] = job
	return job, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, jobID string) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("store: job %s: %w", jobID, domain.ErrNotFound)
	}
	return job, nil
}

// List returns matching jobs ordered by creation time, then ID.
func (s *MemoryStore) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Matches(job) {
			out = append(out, job)
		}
	}
	s.mu.RUnlock()
	sortJobs(out)
	return out, nil
}

func sortJobs(jobs []domain.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
}

func validateNew(job domain.Job) error {
	if job.ID == "" {
		return fmt.Errorf("%w: job id is required", domain.ErrInvalidRequest)
	}
	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("%w: job %s must be created pending, got %q", domain.ErrInvalidRequest, job.ID, job.Status)
	}
	if _, ok := domain.SpecFor(job.Format); !ok {
		return fmt.Errorf("%w: job %s has unsupported format %q", domain.ErrInvalidRequest, job.ID, job.Format)
	}
	return nil
}

var _ domain.JobRepository = (*MemoryStore)(nil)
