package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// CopyElements are the text fields rendered over the generated background.
type CopyElements struct {
	Eyebrow     string `json:"eyebrow"`
	Headline    string `json:"headline"`
	CTA         string `json:"cta"`
	AccentColor string `json:"accent_color,omitempty"`
}

// BatchRequest asks for one creative per requested format.
type BatchRequest struct {
	Formats []Format     `json:"formats"`
	Source  SourceAsset  `json:"source"`
	Copy    CopyElements `json:"copy"`
	// Brief is free-form creative direction for the image model.
	Brief string `json:"brief,omitempty"`
	// Seeds are historical ads; the best SeedCount of them bias the prompt.
	Seeds     []PerformanceRecord `json:"seeds,omitempty"`
	SeedCount int                 `json:"seed_count,omitempty"`
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks the request shape. It does not check provider configuration.
func (r BatchRequest) Validate() error {
	if len(r.Formats) == 0 {
		return fmt.Errorf("%w: at least one format is required", ErrInvalidRequest)
	}
	seen := make(map[Format]struct{}, len(r.Formats))
	for _, f := range r.Formats {
		if _, ok := FormatSpecs[f]; !ok {
			return fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, f)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("%w: duplicate format %q", ErrInvalidRequest, f)
		}
		seen[f] = struct{}{}
	}
	if err := r.Source.Validate(); err != nil {
		return err
	}
	if accent := strings.TrimSpace(r.Copy.AccentColor); accent != "" && !hexColor.MatchString(accent) {
		return fmt.Errorf("%w: copy.accent_color must be #rrggbb", ErrInvalidRequest)
	}
	if r.SeedCount < 0 {
		return fmt.Errorf("%w: seed_count must not be negative", ErrInvalidRequest)
	}
	return nil
}
