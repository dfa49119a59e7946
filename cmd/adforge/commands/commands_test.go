package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"adforge/internal/ranking"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(envServer, "")
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestWinnersFromStdin(t *testing.T) {
	out, err := run(t, `[
		{"id":"a","leads":0,"impressions":10},
		{"id":"b","leads":2,"impressions":10,"cost_per_lead":20},
		{"id":"c","leads":5,"impressions":10,"cost_per_lead":4}
	]`, "winners", "-n", "2")
	if err != nil {
		t.Fatalf("winners: %v", err)
	}
	var ranked []ranking.Ranked
	if err := json.Unmarshal([]byte(out), &ranked); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(ranked) != 2 || ranked[0].Record.ID != "c" || ranked[1].Record.ID != "b" {
		t.Fatalf("ranked = %+v", ranked)
	}
}

func TestWinnersRejectsBadInput(t *testing.T) {
	if _, err := run(t, `{"id":"a"}`, "winners"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := run(t, `[]`, "winners", "-n", "-1"); err == nil {
		t.Fatalf("expected negative count error")
	}
}

func TestFormatsPrintsRegions(t *testing.T) {
	out, err := run(t, "", "formats")
	if err != nil {
		t.Fatalf("formats: %v", err)
	}
	if !strings.Contains(out, `"aspect_ratio": "9:16"`) || !strings.Contains(out, `"top": 269`) {
		t.Fatalf("output = %s", out)
	}
}

func TestJobsGetAndList(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/jobs/job-1":
			_, _ = w.Write([]byte(`{"job_id":"job-1","status":"completed","result_url":"https://cdn.example.com/1.png"}`))
		case "/v1/jobs/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found","message":"job missing not found"}`))
		default:
			_, _ = w.Write([]byte(`{"items":[{"job_id":"job-1","status":"failed"}]}`))
		}
	}))
	defer srv.Close()

	out, err := run(t, "", "--server", srv.URL, "jobs", "get", "job-1")
	if err != nil {
		t.Fatalf("jobs get: %v", err)
	}
	if !strings.Contains(out, "https://cdn.example.com/1.png") {
		t.Fatalf("output = %s", out)
	}

	_, err = run(t, "", "--server", srv.URL, "jobs", "get", "missing")
	if err == nil || !strings.Contains(err.Error(), "job missing not found") {
		t.Fatalf("err = %v", err)
	}

	if _, err := run(t, "", "--server", srv.URL, "jobs", "list", "-b", "b1", "-s", "failed"); err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if last := paths[len(paths)-1]; last != "/v1/jobs?batch_id=b1&status=failed" {
		t.Fatalf("list path = %q", last)
	}
}

func TestSubmitPostsBatch(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/batches" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"batch_id":"b1","job_ids":["j1","j2"]}`))
	}))
	defer srv.Close()

	t.Setenv(envServer, srv.URL)
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(`{"formats":["feed","story"]}`))
	cmd.SetArgs([]string{"submit"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if strings.TrimSpace(out.String()) != "batch b1: j1, j2" {
		t.Fatalf("output = %q", out.String())
	}
	if formats, _ := body["formats"].([]any); len(formats) != 2 {
		t.Fatalf("body = %v", body)
	}
}
