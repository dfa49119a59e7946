package handlers

import (
	stdzip "archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"adforge/internal/domain"
	"adforge/internal/events"

	"github.com/go-chi/chi/v5"
)

type fakeOrchestrator struct {
	mu        sync.Mutex
	submitted []domain.BatchRequest
	submitErr error
	jobs      map[string]domain.Job
	filters   []domain.JobFilter
	events    chan events.JobEvent
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{jobs: map[string]domain.Job{}, events: make(chan events.JobEvent, 8)}
}

func (f *fakeOrchestrator) SubmitBatch(ctx context.Context, req domain.BatchRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	ids := make([]string, len(req.Formats))
	for i, format := range req.Formats {
		id := fmt.Sprintf("job-%d", i+1)
		f.jobs[id] = domain.Job{ID: id, BatchID: "batch-1", Format: format, Status: domain.JobStatusPending}
		ids[i] = id
	}
	return ids, nil
}

func (f *fakeOrchestrator) GetJob(ctx context.Context, id string) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return job, nil
}

func (f *fakeOrchestrator) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	var out []domain.Job
	for _, job := range f.jobs {
		if filter.Matches(job) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (f *fakeOrchestrator) Subscribe(buffer int) (<-chan events.JobEvent, func()) {
	return f.events, func() {}
}

func newTestRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/formats", app.Formats)
	r.Post("/v1/winners", app.Winners)
	r.Post("/v1/batches", app.SubmitBatch)
	r.Get("/v1/jobs", app.ListJobs)
	r.Get("/v1/jobs/events", app.StreamJobs)
	r.Get("/v1/jobs/{jobID}", app.GetJob)
	r.Get("/v1/batches/{batchID}/archive", app.BatchArchive)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestSubmitBatchAccepted(t *testing.T) {
	orch := newFakeOrchestrator()
	h := newTestRouter(NewApp(orch, nil, nil))

	rec := do(t, h, http.MethodPost, "/v1/batches", `{
		"formats": ["Feed", " story "],
		"source": {"image_base64": "data:image/png;base64,aGVsbG8="},
		"copy": {"headline": "Cold brew in 60 seconds", "cta": "Shop now"},
		"brief": "  summer launch  "
	}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BatchID != "batch-1" || len(resp.JobIDs) != 2 {
		t.Fatalf("response = %+v", resp)
	}

	got := orch.submitted[0]
	if got.Formats[0] != domain.FormatFeed || got.Formats[1] != domain.FormatStory {
		t.Fatalf("formats = %v", got.Formats)
	}
	if string(got.Source.Data) != "hello" || got.Source.MIME != "image/png" {
		t.Fatalf("source = %q (%s)", got.Source.Data, got.Source.MIME)
	}
	if got.Brief != "summer launch" {
		t.Fatalf("brief = %q", got.Brief)
	}
}

func TestSubmitBatchErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		submitErr error
		wantCode  int
		wantError string
	}{
		{name: "malformed json", body: `{`, wantCode: http.StatusBadRequest, wantError: "invalid_request"},
		{name: "empty body", body: ``, wantCode: http.StatusBadRequest, wantError: "invalid_request"},
		{name: "unknown format", body: `{"formats":["banner"]}`, wantCode: http.StatusBadRequest, wantError: "invalid_request"},
		{name: "bad base64", body: `{"formats":["feed"],"source":{"image_base64":"%%%"}}`, wantCode: http.StatusBadRequest, wantError: "invalid_request"},
		{name: "missing template", body: `{"formats":["reel"]}`, submitErr: fmt.Errorf("%w: no template for reel", domain.ErrConfiguration), wantCode: http.StatusInternalServerError, wantError: "configuration_error"},
		{name: "store down", body: `{"formats":["feed"]}`, submitErr: errors.New("connection refused"), wantCode: http.StatusInternalServerError, wantError: "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			orch := newFakeOrchestrator()
			orch.submitErr = tc.submitErr
			rec := do(t, newTestRouter(NewApp(orch, nil, nil)), http.MethodPost, "/v1/batches", tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if got := decodeError(t, rec).Error; got != tc.wantError {
				t.Fatalf("error = %q, want %q", got, tc.wantError)
			}
		})
	}
}

func TestGetJob(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.jobs["job-7"] = domain.Job{ID: "job-7", BatchID: "b", Format: domain.FormatFeed, Status: domain.JobStatusFailed, ErrorMessage: "NSFW content detected"}
	h := newTestRouter(NewApp(orch, nil, nil))

	rec := do(t, h, http.MethodGet, "/v1/jobs/job-7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var job domain.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ErrorMessage != "NSFW content detected" {
		t.Fatalf("error_message = %q", job.ErrorMessage)
	}

	rec = do(t, h, http.MethodGet, "/v1/jobs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d", rec.Code)
	}
}

func TestListJobsFilters(t *testing.T) {
	orch := newFakeOrchestrator()
	h := newTestRouter(NewApp(orch, nil, nil))

	rec := do(t, h, http.MethodGet, "/v1/jobs?batch_id=b1&status=Completed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"items":[]}` {
		t.Fatalf("body = %s", rec.Body.String())
	}
	want := domain.JobFilter{BatchID: "b1", Status: domain.JobStatusCompleted}
	if orch.filters[0] != want {
		t.Fatalf("filter = %+v, want %+v", orch.filters[0], want)
	}

	rec = do(t, h, http.MethodGet, "/v1/jobs?status=done", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status code = %d", rec.Code)
	}
}

func TestWinners(t *testing.T) {
	h := newTestRouter(NewApp(newFakeOrchestrator(), nil, nil))
	rec := do(t, h, http.MethodPost, "/v1/winners", `{
		"count": 2,
		"records": [
			{"id": "a", "leads": 0, "impressions": 100},
			{"id": "b", "leads": 4, "impressions": 100, "cost_per_lead": 12.5, "outbound_ctr": 0.01},
			{"id": "c", "leads": 9, "impressions": 100, "cost_per_lead": 8, "outbound_ctr": 0.02}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []struct {
			Rank   int                      `json:"rank"`
			Record domain.PerformanceRecord `json:"record"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].Record.ID != "c" || resp.Items[1].Record.ID != "b" || resp.Items[1].Rank != 2 {
		t.Fatalf("items = %+v", resp.Items)
	}

	rec = do(t, h, http.MethodPost, "/v1/winners", `{"count": -1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative count status = %d", rec.Code)
	}
}

func TestFormatsMarksConfiguredTemplates(t *testing.T) {
	app := NewApp(newFakeOrchestrator(), map[domain.Format]string{domain.FormatStory: "tpl"}, nil)
	rec := do(t, newTestRouter(app), http.MethodGet, "/v1/formats", "")
	var resp listResponse[formatItem]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(resp.Items))
	}
	for _, item := range resp.Items {
		if item.Enabled != (item.Format == domain.FormatStory) {
			t.Fatalf("%s enabled = %v", item.Format, item.Enabled)
		}
		if item.Format == domain.FormatStory && (item.TextRegion.Top != 269 || item.TextRegion.Bottom != 1536) {
			t.Fatalf("story region = %+v", item.TextRegion)
		}
	}
}

func TestHealthReportsFailingCheck(t *testing.T) {
	app := NewApp(newFakeOrchestrator(), nil, nil)
	app.Checks["store"] = func(ctx context.Context) error { return nil }
	h := newTestRouter(app)

	if rec := do(t, h, http.MethodGet, "/v1/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", rec.Code)
	}

	app.Checks["storage"] = func(ctx context.Context) error { return errors.New("read-only file system") }
	rec := do(t, h, http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Checks["storage"] != "read-only file system" || resp.Checks["store"] != "ok" {
		t.Fatalf("checks = %v", resp.Checks)
	}
}

func TestStreamJobsFiltersByBatch(t *testing.T) {
	orch := newFakeOrchestrator()
	srv := httptest.NewServer(newTestRouter(NewApp(orch, nil, nil)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/jobs/events?batch_id=b1", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	orch.events <- events.JobEvent{Type: events.EventJobCreated, Job: domain.Job{ID: "other", BatchID: "b2"}}
	orch.events <- events.JobEvent{Type: events.EventJobCompleted, Job: domain.Job{ID: "job-1", BatchID: "b1", Status: domain.JobStatusCompleted}}

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if lines[0] != "event: job.completed" {
		t.Fatalf("event line = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"job_id":"job-1"`) || strings.Contains(lines[1], "other") {
		t.Fatalf("data line = %q", lines[1])
	}
}

func TestServerShutdownEndsStreams(t *testing.T) {
	app := NewApp(newFakeOrchestrator(), nil, nil)
	srv := httptest.NewServer(newTestRouter(app))
	defer srv.Close()
	srv.Config.RegisterOnShutdown(app.CloseStreams)

	resp, err := srv.Client().Get(srv.URL + "/v1/jobs/events")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Config.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown with open stream: %v", err)
	}
	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatalf("stream did not end cleanly: %v", err)
	}
}

func TestBatchArchive(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nrest"))
	}))
	defer cdn.Close()

	orch := newFakeOrchestrator()
	orch.jobs["j1"] = domain.Job{ID: "j1", BatchID: "b1", Format: domain.FormatFeed, Status: domain.JobStatusCompleted, ResultURL: cdn.URL + "/feed.png"}
	orch.jobs["j2"] = domain.Job{ID: "j2", BatchID: "b1", Format: domain.FormatStory, Status: domain.JobStatusFailed, ErrorMessage: "NSFW content detected"}
	h := newTestRouter(NewApp(orch, nil, nil))

	rec := do(t, h, http.MethodGet, "/v1/batches/b1/archive", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	zr, err := stdzip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if len(names) != 2 || names[0] != "manifest.json" || names[1] != "feed-j1.png" {
		t.Fatalf("entries = %v", names)
	}

	rec = do(t, h, http.MethodGet, "/v1/batches/unknown/archive", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown batch status = %d", rec.Code)
	}
}

func TestBatchArchiveUpstreamFailure(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer cdn.Close()

	orch := newFakeOrchestrator()
	orch.jobs["j1"] = domain.Job{ID: "j1", BatchID: "b1", Format: domain.FormatFeed, Status: domain.JobStatusCompleted, ResultURL: cdn.URL + "/expired.png"}
	rec := do(t, newTestRouter(NewApp(orch, nil, nil)), http.MethodGet, "/v1/batches/b1/archive", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeError(t, rec).Error; got != "upstream_unavailable" {
		t.Fatalf("error = %q", got)
	}
}
