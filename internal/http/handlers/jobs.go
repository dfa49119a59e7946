package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"adforge/internal/domain"
	"adforge/internal/events"

	"github.com/go-chi/chi/v5"
)

// streamHeartbeat keeps idle event streams alive through proxies.
const streamHeartbeat = 15 * time.Second

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := jobFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	jobs, err := a.Jobs.ListJobs(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	a.json(w, http.StatusOK, listResponse[domain.Job]{Items: jobs})
}

func jobFilter(r *http.Request) (domain.JobFilter, error) {
	q := r.URL.Query()
	filter := domain.JobFilter{BatchID: strings.TrimSpace(q.Get("batch_id"))}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := domain.JobStatus(strings.ToLower(raw))
		if !status.Valid() {
			return domain.JobFilter{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, raw)
		}
		filter.Status = status
	}
	return filter, nil
}

// StreamJobs pushes job lifecycle events as server-sent events until the
// client disconnects or CloseStreams is called. The batch_id and status query parameters filter the
// stream like ListJobs does.
func (a *App) StreamJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := jobFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	ch, cancel := a.Jobs.Subscribe(events.DefaultBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		a.Logger.Warn().Err(err).Msg("http: response does not support streaming")
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-a.done:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if !filter.Matches(evt.Job) {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				a.Logger.Error().Err(err).Msg("http: encode job event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
