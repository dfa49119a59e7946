// Package providers defines the uniform contract shared by every external
// generation backend and the bounded polling loop that drives them.
package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adforge/internal/domain"
)

// Status is the normalised provider-side state of a submitted task.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether polling can stop.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// PollResult is the tagged-variant outcome of one poll. Output is only
// meaningful when Status is succeeded, Error only when it is failed.
type PollResult struct {
	Status Status
	Output []string
	Error  string
}

// Handle identifies submitted work at a provider. Settled is set when the
// provider already answered with a terminal state during submit.
type Handle struct {
	Provider string
	ID       string
	Settled  *PollResult
}

func (h Handle) String() string {
	return h.Provider + ":" + h.ID
}

// Poller reports the current state of submitted work.
type Poller interface {
	Poll(ctx context.Context, h Handle) (PollResult, error)
}

// ImageInput is a normalised text-to-image request.
type ImageInput struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Width          int
	Height         int
	RequestID      string
}

// ImageGenerator starts background image generation.
type ImageGenerator interface {
	Poller
	SubmitImage(ctx context.Context, in ImageInput) (Handle, error)
}

// OverlayInput asks the overlay service to render copy over a background.
type OverlayInput struct {
	TemplateID    string
	BackgroundURL string
	Eyebrow       string
	Headline      string
	CTA           string
	AccentColor   string
	Region        domain.TextRegion
	Width         int
	Height        int
	RequestID     string
}

// OverlayRenderer renders text layers onto a background image.
type OverlayRenderer interface {
	Poller
	SubmitOverlay(ctx context.Context, in OverlayInput) (Handle, error)
}

// Describer produces a short free-text style description of an image.
type Describer interface {
	DescribeStyle(ctx context.Context, image []byte, mime string) (string, error)
}

// PollPolicy bounds a polling loop.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Result extracts the first usable output. It is only valid after success.
func Result(res PollResult) (string, error) {
	if res.Status != StatusSucceeded {
		return "", fmt.Errorf("%w: result requested in status %q", domain.ErrInvalidResponse, res.Status)
	}
	for _, out := range res.Output {
		if out = strings.TrimSpace(out); out != "" {
			return out, nil
		}
	}
	return "", fmt.Errorf("%w: provider reported success without output", domain.ErrInvalidResponse)
}

// NormalizeStatus maps provider vocabularies onto Status. Unknown values are
// treated as still processing.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "starting", "queued", "pending", "created":
		return StatusStarting
	case "succeeded", "success", "completed", "complete", "done":
		return StatusSucceeded
	case "failed", "failure", "error", "canceled", "cancelled", "aborted":
		return StatusFailed
	default:
		return StatusProcessing
	}
}
