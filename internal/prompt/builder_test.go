package prompt

import (
	"strings"
	"testing"

	"adforge/internal/domain"
)

func TestBuildCreativePromptStory(t *testing.T) {
	p := BuildCreativePrompt(Input{
		Spec: domain.FormatSpecs[domain.FormatStory],
		Design: domain.DesignSystem{
			ColorPalette: []string{"#ff6600", "#1a1a1a"},
			Tags:         []string{"dark", "vibrant"},
			Description:  "Moody  studio lighting\nwith hard shadows.",
		},
		Copy:       domain.CopyElements{Headline: "Cold brew in 60 seconds"},
		Brief:      "  a glass of iced coffee on a concrete counter. ",
		References: []string{"Summer promo", "summer PROMO", "  ", "Launch video"},
	})

	mustContain := []string{
		"Create a premium advertising background image: a glass of iced coffee on a concrete counter.",
		`"Cold brew in 60 seconds"`,
		"Format: 9:16 portrait (1080x1920 pixels).",
		"top 14% and bottom 20%",
		"between 14% and 80% of the height",
		"#ff6600, #1a1a1a",
		"Overall tone: Dark, Vibrant.",
		"Moody studio lighting with hard shadows.",
		`"Summer promo"; "Launch video"`,
	}
	for _, want := range mustContain {
		if !strings.Contains(p.Text, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p.Text)
		}
	}
	if strings.Contains(p.Text, "clean, contemporary look") {
		t.Fatalf("generic style guidance must not appear with a design system")
	}
	if p.Negative != DefaultNegativePrompt {
		t.Fatalf("negative prompt = %q", p.Negative)
	}
}

func TestBuildCreativePromptWithoutDesignSystem(t *testing.T) {
	p := BuildCreativePrompt(Input{Spec: domain.FormatSpecs[domain.FormatFeed]})
	if !strings.Contains(p.Text, "Format: 1:1 square (1080x1080 pixels).") {
		t.Fatalf("unexpected format line:\n%s", p.Text)
	}
	if strings.Contains(p.Text, "platform interface") {
		t.Fatalf("feed has no safe zones:\n%s", p.Text)
	}
	if !strings.Contains(p.Text, "clean, contemporary look") {
		t.Fatalf("generic style guidance missing:\n%s", p.Text)
	}
	if strings.Contains(p.Text, "top performing ads") {
		t.Fatalf("references line must be omitted:\n%s", p.Text)
	}
}

func TestReferencesAreCapped(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	if got := references(names); len(got) != maxReferences {
		t.Fatalf("references = %v, want %d entries", got, maxReferences)
	}
}
