package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"adforge/internal/domain"
	"adforge/internal/infra"
)

// PostgresStore persists jobs in the creative_jobs table.
type PostgresStore struct {
	db  infra.SQLExecutor
	now func() time.Time
}

// NewPostgresStore expects db to be an *infra.SQLRunner so every statement
// is logged against its marker.
func NewPostgresStore(db infra.SQLExecutor) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// EnsureSchema creates the table and index when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{QCreateSchema, QCreateBatchIndex} {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, jobs []domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	ids := make([]string, len(jobs))
	batches := make([]string, len(jobs))
	formats := make([]string, len(jobs))
	statuses := make([]string, len(jobs))
	created := make([]time.Time, len(jobs))
	updated := make([]time.Time, len(jobs))
	for i, job := range jobs {
		if err := validateNew(job); err != nil {
			return err
		}
		ids[i] = job.ID
		batches[i] = job.BatchID
		formats[i] = string(job.Format)
		statuses[i] = string(job.Status)
		created[i] = job.CreatedAt
		updated[i] = job.UpdatedAt
	}
	if _, err := s.db.Exec(ctx, QInsertJobs, ids, batches, formats, statuses, created, updated); err != nil {
		return fmt.Errorf("store: insert jobs: %w", err)
	}
	return nil
}

// Transition relies on the status guard in the WHERE clause, so concurrent
// writers can never move a job backwards.
func (s *PostgresStore) Transition(ctx context.Context, jobID string, update domain.JobUpdate) (domain.Job, error) {
	sources := domain.AllowedSources(update.Status)
	if len(sources) == 0 {
		return domain.Job{}, fmt.Errorf("store: job %s -> %s: %w", jobID, update.Status, domain.ErrInvalidTransition)
	}
	from := make([]string, len(sources))
	for i, st := range sources {
		from[i] = string(st)
	}

	row := s.db.QueryRow(ctx, QTransitionJob,
		jobID,
		string(update.Status),
		s.now(),
		update.ImageURL,
		update.ResultURL,
		update.ErrorMessage,
		from,
	)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !infra.IsNoRows(err) {
		return domain.Job{}, fmt.Errorf("store: transition job %s: %w", jobID, err)
	}
	current, getErr := s.GetByID(ctx, jobID)
	if getErr != nil {
		return domain.Job{}, getErr
	}
	return domain.Job{}, fmt.Errorf("store: job %s %s -> %s: %w", jobID, current.Status, update.Status, domain.ErrInvalidTransition)
}

func (s *PostgresStore) GetByID(ctx context.Context, jobID string) (domain.Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, QGetJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Job{}, fmt.Errorf("store: job %s: %w", jobID, domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("store: get job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *PostgresStore) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	rows, err := s.db.Query(ctx, QListJobs, filter.BatchID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var (
		job            domain.Job
		format, status string
	)
	if err := row.Scan(
		&job.ID,
		&job.BatchID,
		&format,
		&status,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.ImageURL,
		&job.ResultURL,
		&job.ErrorMessage,
	); err != nil {
		return domain.Job{}, err
	}
	job.Format = domain.Format(format)
	job.Status = domain.JobStatus(status)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return job, nil
}

var _ domain.JobRepository = (*PostgresStore)(nil)
