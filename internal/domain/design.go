package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// DesignSystem is the style descriptor extracted from a brand asset.
type DesignSystem struct {
	// ColorPalette holds "#rrggbb" values, most dominant first.
	ColorPalette []string `json:"color_palette"`
	Tags         []string `json:"tags,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// IsZero reports whether no style information is available.
func (d DesignSystem) IsZero() bool {
	return len(d.ColorPalette) == 0 && len(d.Tags) == 0 && strings.TrimSpace(d.Description) == ""
}

// Accent returns the most dominant palette colour, or "" when none.
func (d DesignSystem) Accent() string {
	if len(d.ColorPalette) == 0 {
		return ""
	}
	return d.ColorPalette[0]
}

// SourceAsset references the brand material a batch should match. At most
// one of ImageURL, PageURL or Data is required; all empty means no source.
type SourceAsset struct {
	ImageURL string `json:"image_url,omitempty"`
	PageURL  string `json:"page_url,omitempty"`
	Data     []byte `json:"-"`
	MIME     string `json:"-"`
}

// IsZero reports whether no source was supplied.
func (s SourceAsset) IsZero() bool {
	return strings.TrimSpace(s.ImageURL) == "" && strings.TrimSpace(s.PageURL) == "" && len(s.Data) == 0
}

// Validate checks that any supplied URL is an absolute http(s) reference.
func (s SourceAsset) Validate() error {
	fields := []struct{ name, raw string }{{"image_url", s.ImageURL}, {"page_url", s.PageURL}}
	for _, field := range fields {
		name, raw := field.name, strings.TrimSpace(field.raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: source.%s must be an absolute http(s) url", ErrInvalidRequest, name)
		}
	}
	return nil
}
