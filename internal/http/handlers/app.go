package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"adforge/internal/domain"
	"adforge/internal/events"
	"adforge/internal/infra"
)

// maxBodyBytes bounds request payloads; inline source images dominate.
const maxBodyBytes = 25 << 20

// Orchestrator is the slice of the job orchestrator the API serves.
type Orchestrator interface {
	SubmitBatch(ctx context.Context, req domain.BatchRequest) ([]string, error)
	GetJob(ctx context.Context, id string) (domain.Job, error)
	ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error)
	Subscribe(buffer int) (<-chan events.JobEvent, func())
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type App struct {
	Jobs   Orchestrator
	Checks map[string]HealthCheck
	// Templates lists which formats have an overlay template configured.
	Templates map[domain.Format]string
	// HTTPClient downloads rendered creatives for archives.
	HTTPClient *http.Client
	Logger     *infra.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewApp(jobs Orchestrator, templates map[domain.Format]string, logger *infra.Logger) *App {
	return &App{
		Jobs:       jobs,
		Checks:     map[string]HealthCheck{},
		Templates:  templates,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     infra.LoggerOrDiscard(logger),
		done:       make(chan struct{}),
	}
}

// CloseStreams ends every open event stream. Servers register it as a
// shutdown hook because Shutdown does not cancel active requests.
func (a *App) CloseStreams() {
	a.closeOnce.Do(func() {
		if a.done != nil {
			close(a.done)
		}
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

// fail maps domain errors onto HTTP statuses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		a.error(w, http.StatusInternalServerError, "configuration_error", err.Error())
	case errors.Is(err, context.Canceled):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "service is shutting down")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrInvalidRequest, tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty payload", domain.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: invalid payload: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}
