package domain

import "context"

// JobRepository is the durable record of jobs. Every Transition is a single
// atomic write keyed by job ID and rejects backward moves with
// ErrInvalidTransition.
type JobRepository interface {
	Create(ctx context.Context, jobs []Job) error
	Transition(ctx context.Context, jobID string, update JobUpdate) (Job, error)
	GetByID(ctx context.Context, jobID string) (Job, error)
	List(ctx context.Context, filter JobFilter) ([]Job, error)
}
