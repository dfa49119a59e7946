package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"adforge/internal/domain"
	"adforge/pkg/zip"

	"github.com/go-chi/chi/v5"
)

// maxCreativeBytes bounds each downloaded creative.
const maxCreativeBytes = 25 << 20

var errUpstream = errors.New("creative download failed")

type archiveManifest struct {
	BatchID     string       `json:"batch_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Jobs        []domain.Job `json:"jobs"`
}

// BatchArchive bundles every completed creative of a batch, plus a manifest
// of all its jobs, into one zip download.
func (a *App) BatchArchive(w http.ResponseWriter, r *http.Request) {
	batchID := strings.TrimSpace(chi.URLParam(r, "batchID"))
	jobs, err := a.Jobs.ListJobs(r.Context(), domain.JobFilter{BatchID: batchID})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(jobs) == 0 {
		a.fail(w, r, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID))
		return
	}

	now := time.Now().UTC()
	manifest, err := json.MarshalIndent(archiveManifest{BatchID: batchID, GeneratedAt: now, Jobs: jobs}, "", "  ")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	entries := []zip.Entry{{Name: "manifest.json", Modified: now, Data: manifest}}
	for _, job := range jobs {
		if job.Status != domain.JobStatusCompleted || job.ResultURL == "" {
			continue
		}
		data, ext, err := a.download(r.Context(), job.ResultURL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("http: archive download failed")
			a.error(w, http.StatusBadGateway, "upstream_unavailable", fmt.Sprintf("job %s: %v", job.ID, err))
			return
		}
		entries = append(entries, zip.Entry{
			Name:     fmt.Sprintf("%s-%s%s", job.Format, job.ID, ext),
			Modified: job.UpdatedAt,
			Data:     data,
		})
	}

	var buf bytes.Buffer
	if err := zip.Write(&buf, entries); err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="batch-%s.zip"`, batchID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *App) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", errUpstream, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCreativeBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errUpstream, err)
	}
	if len(data) > maxCreativeBytes {
		return nil, "", fmt.Errorf("%w: creative exceeds %d bytes", errUpstream, maxCreativeBytes)
	}
	return data, extensionFor(resp.Header.Get("Content-Type"), data), nil
}

func extensionFor(contentType string, data []byte) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		mediaType = http.DetectContentType(data)
	}
	switch {
	case strings.HasPrefix(mediaType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(mediaType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(mediaType, "image/png"):
		return ".png"
	default:
		return ".bin"
	}
}
