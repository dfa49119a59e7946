// Package designsystem derives a brand style descriptor (palette, tone tags
// and an optional free-text description) from an image or landing page.
package designsystem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"adforge/internal/domain"
	"adforge/internal/infra"
	"adforge/internal/providers"
	"adforge/internal/storage"
)

const defaultMaxBytes = 20 << 20

// ArtefactWriter persists snapshot bytes.
type ArtefactWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Options wires the extractor's collaborators. Snapshotter, Describer and
// Store are optional.
type Options struct {
	HTTPClient  *http.Client
	Snapshotter Snapshotter
	Describer   providers.Describer
	Store       ArtefactWriter
	MaxBytes    int64
	Logger      *infra.Logger
}

type Extractor struct {
	httpClient  *http.Client
	snapshotter Snapshotter
	describer   providers.Describer
	store       ArtefactWriter
	maxBytes    int64
	logger      *infra.Logger
}

func NewExtractor(opts Options) *Extractor {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Extractor{
		httpClient:  httpClient,
		snapshotter: opts.Snapshotter,
		describer:   opts.Describer,
		store:       opts.Store,
		maxBytes:    maxBytes,
		logger:      infra.LoggerOrDiscard(opts.Logger),
	}
}

// Extract returns the design system of src. An empty source yields the zero
// DesignSystem. Inline bytes win over ImageURL, which wins over PageURL.
func (e *Extractor) Extract(ctx context.Context, src domain.SourceAsset) (domain.DesignSystem, error) {
	if src.IsZero() {
		return domain.DesignSystem{}, nil
	}
	if err := src.Validate(); err != nil {
		return domain.DesignSystem{}, err
	}

	data, mime, err := e.load(ctx, src)
	if err != nil {
		return domain.DesignSystem{}, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return domain.DesignSystem{}, fmt.Errorf("designsystem: decode image: %w", err)
	}
	analysis := Analyze(img)
	ds := domain.DesignSystem{
		ColorPalette: analysis.Palette,
		Tags:         analysis.Tags,
	}

	if e.describer != nil {
		desc, err := e.describer.DescribeStyle(ctx, data, mime)
		if err != nil {
			e.logger.Warn().Err(err).Msg("designsystem: style description unavailable")
		} else {
			ds.Description = desc
		}
	}

	e.logger.Debug().
		Strs("palette", ds.ColorPalette).
		Strs("tags", ds.Tags).
		Bool("described", ds.Description != "").
		Msg("designsystem: extracted")
	return ds, nil
}

func (e *Extractor) load(ctx context.Context, src domain.SourceAsset) ([]byte, string, error) {
	switch {
	case len(src.Data) > 0:
		return src.Data, strings.TrimSpace(src.MIME), nil
	case strings.TrimSpace(src.ImageURL) != "":
		return e.fetch(ctx, strings.TrimSpace(src.ImageURL))
	default:
		return e.snapshot(ctx, strings.TrimSpace(src.PageURL))
	}
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("designsystem: build request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("designsystem: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("designsystem: fetch %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("designsystem: read %s: %w", rawURL, err)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, "", fmt.Errorf("designsystem: %s exceeds %d bytes", rawURL, e.maxBytes)
	}
	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func (e *Extractor) snapshot(ctx context.Context, pageURL string) ([]byte, string, error) {
	if e.snapshotter == nil {
		return nil, "", fmt.Errorf("%w: page snapshots are not configured", domain.ErrConfiguration)
	}
	shot, err := e.snapshotter.Snapshot(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	if e.store != nil {
		key, err := e.store.Write(ctx, storage.ContentKey("snapshots", shot, "png"), shot)
		if err != nil {
			e.logger.Warn().Err(err).Str("page_url", pageURL).Msg("designsystem: snapshot not persisted")
		} else {
			e.logger.Info().Str("page_url", pageURL).Str("key", key).Msg("designsystem: snapshot stored")
		}
	}
	return shot, "image/png", nil
}
