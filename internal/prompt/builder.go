// Package prompt turns a batch request and its design system into
// text-to-image instructions.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"adforge/internal/domain"
)

// DefaultNegativePrompt lists artefacts the image model should avoid. Copy is
// rendered by the overlay step, so any text in the background is a defect.
const DefaultNegativePrompt = "low quality, blurry, distorted, washed out, watermark, text, letters, typography, captions, logos, extra limbs"

const maxReferences = 5

// Input gathers everything that shapes one job's background image.
type Input struct {
	Spec   domain.FormatSpec
	Design domain.DesignSystem
	Copy   domain.CopyElements
	Brief  string
	// References are names of winning creatives used as seeds.
	References []string
}

// Prompt is what gets sent to the image provider.
type Prompt struct {
	Text     string
	Negative string
}

// BuildCreativePrompt writes one instruction per line, most important first.
func BuildCreativePrompt(in Input) Prompt {
	title := cases.Title(language.English)
	var lines []string

	if brief := collapse(in.Brief); brief != "" {
		lines = append(lines, fmt.Sprintf("Create a premium advertising background image: %s.", strings.TrimRight(brief, ".")))
	} else {
		lines = append(lines, "Create a premium advertising background image for a modern brand.")
	}
	if headline := collapse(in.Copy.Headline); headline != "" {
		lines = append(lines, fmt.Sprintf("The scene should support the message %q without showing any text.", headline))
	}

	lines = append(lines, fmt.Sprintf("Format: %s %s (%dx%d pixels).", in.Spec.AspectRatio, orientation(in.Spec), in.Spec.Width, in.Spec.Height))
	if zones := in.Spec.SafeZones; zones.Top > 0 || zones.Bottom > 0 {
		lines = append(lines, fmt.Sprintf(
			"Keep the top %d%% and bottom %d%% of the canvas free of key subjects; they are covered by platform interface elements.",
			percent(zones.Top), percent(zones.Bottom)))
	}
	region := in.Spec.TextRegion()
	lines = append(lines, fmt.Sprintf(
		"Leave a calm, uncluttered area between %d%% and %d%% of the height for headline and call-to-action overlays.",
		percentOf(region.Top, in.Spec.Height), percentOf(region.Bottom, in.Spec.Height)))

	if len(in.Design.ColorPalette) > 0 {
		lines = append(lines, "Brand colour palette, most dominant first: "+strings.Join(in.Design.ColorPalette, ", ")+".")
	}
	if len(in.Design.Tags) > 0 {
		tags := make([]string, 0, len(in.Design.Tags))
		for _, tag := range in.Design.Tags {
			if tag = collapse(tag); tag != "" {
				tags = append(tags, title.String(tag))
			}
		}
		if len(tags) > 0 {
			lines = append(lines, "Overall tone: "+strings.Join(tags, ", ")+".")
		}
	}
	if desc := collapse(in.Design.Description); desc != "" {
		lines = append(lines, "Match this existing brand look: "+desc)
	}
	if in.Design.IsZero() {
		lines = append(lines, "Use a clean, contemporary look with balanced, natural colours.")
	}

	if refs := references(in.References); len(refs) > 0 {
		lines = append(lines, "Take creative cues from these top performing ads: "+strings.Join(refs, "; ")+".")
	}

	lines = append(lines, "Render with studio-quality lighting, sharp focus and clean post-processing, ready for paid social placements.")

	return Prompt{Text: strings.Join(lines, "\n"), Negative: DefaultNegativePrompt}
}

func orientation(spec domain.FormatSpec) string {
	switch {
	case spec.Height > spec.Width:
		return "portrait"
	case spec.Width > spec.Height:
		return "landscape"
	default:
		return "square"
	}
}

func percent(f float64) int {
	return int(f*100 + 0.5)
}

func percentOf(px, total int) int {
	if total <= 0 {
		return 0
	}
	return (px*100 + total/2) / total
}

func references(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = collapse(name)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, fmt.Sprintf("%q", name))
		if len(out) == maxReferences {
			break
		}
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
