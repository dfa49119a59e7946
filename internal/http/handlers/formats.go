package handlers

import (
	"net/http"

	"adforge/internal/domain"
)

type formatItem struct {
	domain.FormatSpec
	TextRegion domain.TextRegion `json:"text_region"`
	Enabled    bool              `json:"enabled"`
}

// Formats lists the supported geometries; Enabled marks formats with an
// overlay template configured.
func (a *App) Formats(w http.ResponseWriter, r *http.Request) {
	items := make([]formatItem, 0, len(domain.OrderedFormats))
	for _, f := range domain.OrderedFormats {
		spec := domain.FormatSpecs[f]
		_, enabled := a.Templates[f]
		items = append(items, formatItem{FormatSpec: spec, TextRegion: spec.TextRegion(), Enabled: enabled})
	}
	a.json(w, http.StatusOK, listResponse[formatItem]{Items: items})
}
