package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a job may move from one status to another.
// Transitions only ever move forward; a pending job may fail before it
// reaches a provider.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// AllowedSources lists the statuses from which a transition into to is legal.
func AllowedSources(to JobStatus) []JobStatus {
	var out []JobStatus
	for _, from := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Job encapsulates the lifecycle of one creative for a single output format.
type Job struct {
	ID           string    `json:"job_id"`
	BatchID      string    `json:"batch_id"`
	Format       Format    `json:"format"`
	Status       JobStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ImageURL     string    `json:"image_url,omitempty"`
	ResultURL    string    `json:"result_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// JobUpdate carries the optional fields written alongside a status transition.
type JobUpdate struct {
	Status       JobStatus
	ImageURL     string
	ResultURL    string
	ErrorMessage string
}

// Apply returns a copy of j with the update written onto it.
func (u JobUpdate) Apply(j Job, now time.Time) Job {
	j.Status = u.Status
	j.UpdatedAt = now
	if u.ImageURL != "" {
		j.ImageURL = u.ImageURL
	}
	if u.ResultURL != "" {
		j.ResultURL = u.ResultURL
	}
	if u.ErrorMessage != "" {
		j.ErrorMessage = u.ErrorMessage
	}
	return j
}

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	BatchID string
	Status  JobStatus
}

// Matches reports whether j satisfies the filter.
func (f JobFilter) Matches(j Job) bool {
	if f.BatchID != "" && j.BatchID != f.BatchID {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	return true
}
