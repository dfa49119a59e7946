package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adforge/internal/domain"
)

func pendingJob(id string, format domain.Format, created time.Time) domain.Job {
	return domain.Job{
		ID:        id,
		BatchID:   "batch-1",
		Format:    format,
		Status:    domain.JobStatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Create(ctx, []domain.Job{pendingJob("a", domain.FormatFeed, base)}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	job, err := s.Transition(ctx, "a", domain.JobUpdate{Status: domain.JobStatusProcessing})
	if err != nil || job.Status != domain.JobStatusProcessing {
		t.Fatalf("Transition = %+v, %v", job, err)
	}
	job, err = s.Transition(ctx, "a", domain.JobUpdate{Status: domain.JobStatusCompleted, ResultURL: "https://cdn.example.com/a.png"})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if job.ResultURL != "https://cdn.example.com/a.png" || !job.UpdatedAt.After(base) {
		t.Fatalf("job = %+v", job)
	}

	for _, to := range []domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusFailed} {
		if _, err := s.Transition(ctx, "a", domain.JobUpdate{Status: to}); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("completed -> %s err = %v, want ErrInvalidTransition", to, err)
		}
	}
	got, err := s.GetByID(ctx, "a")
	if err != nil || got.Status != domain.JobStatusCompleted {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID err = %v", err)
	}
	if _, err := s.Transition(context.Background(), "missing", domain.JobUpdate{Status: domain.JobStatusFailed}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Transition err = %v", err)
	}
}

func TestMemoryStoreCreateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	bad := pendingJob("b", domain.Format("poster"), now)
	if err := s.Create(ctx, []domain.Job{pendingJob("a", domain.FormatFeed, now), bad}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("Create err = %v", err)
	}
	if _, err := s.GetByID(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("partial batch persisted: %v", err)
	}
}

func TestMemoryStoreListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	other := pendingJob("c", domain.FormatReel, base.Add(-time.Minute))
	other.BatchID = "batch-0"
	jobs := []domain.Job{
		pendingJob("b", domain.FormatStory, base),
		pendingJob("a", domain.FormatFeed, base),
		other,
	}
	if err := s.Create(ctx, jobs); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Transition(ctx, "b", domain.JobUpdate{Status: domain.JobStatusFailed, ErrorMessage: "boom"}); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	all, _ := s.List(ctx, domain.JobFilter{})
	if len(all) != 3 || all[0].ID != "c" || all[1].ID != "a" || all[2].ID != "b" {
		t.Fatalf("order = %v", ids(all))
	}
	batch, _ := s.List(ctx, domain.JobFilter{BatchID: "batch-1"})
	if len(batch) != 2 {
		t.Fatalf("batch filter = %v", ids(batch))
	}
	failed, _ := s.List(ctx, domain.JobFilter{Status: domain.JobStatusFailed})
	if len(failed) != 1 || failed[0].ErrorMessage != "boom" {
		t.Fatalf("status filter = %+v", failed)
	}

	all[0].Status = domain.JobStatusCompleted
	if got, _ := s.GetByID(ctx, "c"); got.Status != domain.JobStatusPending {
		t.Fatalf("List leaked a mutable reference")
	}
}

func TestMemoryStoreConcurrentTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Create(ctx, []domain.Job{pendingJob("a", domain.FormatFeed, time.Now())}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := domain.JobStatusProcessing
			if i%2 == 0 {
				to = domain.JobStatusFailed
			}
			if _, err := s.Transition(ctx, "a", domain.JobUpdate{Status: to, ErrorMessage: "x"}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	job, _ := s.GetByID(ctx, "a")
	if job.Status == domain.JobStatusPending {
		t.Fatalf("job still pending")
	}
	// Either a single pending->failed, or pending->processing followed by
	// one processing->failed.
	if wins < 1 || wins > 2 {
		t.Fatalf("successful transitions = %d", wins)
	}
}

func ids(jobs []domain.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
