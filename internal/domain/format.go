package domain

import (
	"fmt"
	"strings"
)

// Format enumerates the supported output shape families.
type Format string

const (
	FormatFeed  Format = "feed"
	FormatStory Format = "story"
	FormatReel  Format = "reel"
)

// SafeZones are fractional margins of the canvas height reserved for
// platform chrome. Overlay text must stay out of them.
type SafeZones struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// FormatSpec is the static geometry contract of one output format.
type FormatSpec struct {
	Format      Format    `json:"format"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	AspectRatio string    `json:"aspect_ratio"`
	SafeZones   SafeZones `json:"safe_zones"`
}

// TextRegion is the vertical pixel band, [Top, Bottom), in which overlay
// text may be placed.
type TextRegion struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// Height of the usable band in pixels.
func (r TextRegion) Height() int {
	return r.Bottom - r.Top
}

// FormatSpecs is indexed by format and never mutated at runtime.
var FormatSpecs = map[Format]FormatSpec{
	FormatFeed: {
		Format:      FormatFeed,
		Width:       1080,
		Height:      1080,
		AspectRatio: "1:1",
	},
	FormatStory: {
		Format:      FormatStory,
		Width:       1080,
		Height:      1920,
		AspectRatio: "9:16",
		SafeZones:   SafeZones{Top: 0.14, Bottom: 0.20},
	},
	FormatReel: {
		Format:      FormatReel,
		Width:       1080,
		Height:      1920,
		AspectRatio: "9:16",
		SafeZones:   SafeZones{Top: 0.25, Bottom: 0.30},
	},
}

// OrderedFormats lists formats in display order.
var OrderedFormats = []Format{FormatFeed, FormatStory, FormatReel}

// ParseFormat normalises free-form input into a supported format.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := FormatSpecs[f]; !ok {
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, raw)
	}
	return f, nil
}

// SpecFor returns the geometry of f.
func SpecFor(f Format) (FormatSpec, bool) {
	spec, ok := FormatSpecs[f]
	return spec, ok
}

// Validate checks the safe-zone invariant.
func (s FormatSpec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("format %s: dimensions must be positive", s.Format)
	}
	if s.SafeZones.Top < 0 || s.SafeZones.Bottom < 0 || s.SafeZones.Top > 1 || s.SafeZones.Bottom > 1 {
		return fmt.Errorf("format %s: safe zones must be within [0, 1]", s.Format)
	}
	if s.SafeZones.Top+s.SafeZones.Bottom >= 1 {
		return fmt.Errorf("format %s: safe zones leave no canvas for text", s.Format)
	}
	return nil
}

// TextRegion converts the fractional safe zones into pixel offsets.
func (s FormatSpec) TextRegion() TextRegion {
	top := int(float64(s.Height)*s.SafeZones.Top + 0.5)
	bottom := s.Height - int(float64(s.Height)*s.SafeZones.Bottom+0.5)
	return TextRegion{Top: top, Bottom: bottom}
}
