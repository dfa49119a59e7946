package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"adforge/internal/domain"
)

type batchRequest struct {
	Formats   []string                   `json:"formats"`
	Source    sourcePayload              `json:"source"`
	Copy      domain.CopyElements        `json:"copy"`
	Brief     string                     `json:"brief"`
	Seeds     []domain.PerformanceRecord `json:"seeds"`
	SeedCount int                        `json:"seed_count"`
}

// sourcePayload carries inline images as base64 next to the URL forms.
type sourcePayload struct {
	ImageURL    string `json:"image_url"`
	PageURL     string `json:"page_url"`
	ImageBase64 string `json:"image_base64"`
	MIME        string `json:"mime_type"`
}

func (s sourcePayload) toDomain() (domain.SourceAsset, error) {
	asset := domain.SourceAsset{
		ImageURL: strings.TrimSpace(s.ImageURL),
		PageURL:  strings.TrimSpace(s.PageURL),
		MIME:     strings.TrimSpace(s.MIME),
	}
	if raw := strings.TrimSpace(s.ImageBase64); raw != "" {
		if i := strings.Index(raw, ";base64,"); strings.HasPrefix(raw, "data:") && i > 0 {
			if asset.MIME == "" {
				asset.MIME = raw[len("data:"):i]
			}
			raw = raw[i+len(";base64,"):]
		}
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return domain.SourceAsset{}, fmt.Errorf("%w: source.image_base64 is not valid base64", domain.ErrInvalidRequest)
		}
		asset.Data = data
	}
	return asset, nil
}

type batchResponse struct {
	BatchID string   `json:"batch_id"`
	JobIDs  []string `json:"job_ids"`
}

// toDomain accepts format names in any case.
func (b batchRequest) toDomain() (domain.BatchRequest, error) {
	formats := make([]domain.Format, 0, len(b.Formats))
	for _, raw := range b.Formats {
		f, err := domain.ParseFormat(raw)
		if err != nil {
			return domain.BatchRequest{}, err
		}
		formats = append(formats, f)
	}
	source, err := b.Source.toDomain()
	if err != nil {
		return domain.BatchRequest{}, err
	}
	return domain.BatchRequest{
		Formats:   formats,
		Source:    source,
		Copy:      b.Copy,
		Brief:     strings.TrimSpace(b.Brief),
		Seeds:     b.Seeds,
		SeedCount: b.SeedCount,
	}, nil
}

// SubmitBatch accepts a batch and answers before any provider work starts.
func (a *App) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := a.decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ids, err := a.Jobs.SubmitBatch(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := batchResponse{JobIDs: ids}
	if len(ids) > 0 {
		job, err := a.Jobs.GetJob(r.Context(), ids[0])
		if err != nil {
			a.fail(w, r, err)
			return
		}
		resp.BatchID = job.BatchID
	}
	a.json(w, http.StatusAccepted, resp)
}
