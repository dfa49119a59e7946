package handlers

import (
	"fmt"
	"net/http"

	"adforge/internal/domain"
	"adforge/internal/ranking"
)

type winnersRequest struct {
	Records []domain.PerformanceRecord `json:"records"`
	Count   int                        `json:"count"`
}

// Winners ranks the posted records and returns the best count of them.
func (a *App) Winners(w http.ResponseWriter, r *http.Request) {
	var body winnersRequest
	if err := a.decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if body.Count < 0 {
		a.fail(w, r, fmt.Errorf("%w: count must not be negative", domain.ErrInvalidRequest))
		return
	}
	winners := ranking.IdentifyWinningCreatives(body.Records, body.Count)
	items := make([]ranking.Ranked, len(winners))
	for i, rec := range winners {
		items[i] = ranking.Ranked{Rank: i + 1, Score: ranking.ScoreOf(rec), Record: rec}
	}
	a.json(w, http.StatusOK, listResponse[ranking.Ranked]{Items: items})
}
