// Package ranking picks the best-performing historical ads to seed new
// creative generation.
package ranking

import (
	"sort"

	"adforge/internal/domain"
)

// Score is the sort key derived from one record.
type Score struct {
	Valid       bool    `json:"valid"`
	CostPerLead float64 `json:"cost_per_lead"`
	OutboundCTR float64 `json:"outbound_ctr"`
}

// ScoreOf derives the ranking key. Records without leads or impressions have
// undefined cost and CTR and are marked invalid.
func ScoreOf(r domain.PerformanceRecord) Score {
	if !r.Comparable() {
		return Score{}
	}
	return Score{Valid: true, CostPerLead: r.CostPerLead, OutboundCTR: r.OutboundCTR}
}

// Less orders a before b: valid before invalid, then cheaper leads, then
// higher outbound CTR.
func (a Score) Less(b Score) bool {
	if a.Valid != b.Valid {
		return a.Valid
	}
	if !a.Valid {
		return false
	}
	if a.CostPerLead != b.CostPerLead {
		return a.CostPerLead < b.CostPerLead
	}
	return a.OutboundCTR > b.OutboundCTR
}

// Ranked pairs a record with its key and its final position.
type Ranked struct {
	Rank   int                      `json:"rank"`
	Score  Score                    `json:"score"`
	Record domain.PerformanceRecord `json:"record"`
}

// Rank orders every record; remaining ties keep input order.
func Rank(records []domain.PerformanceRecord) []Ranked {
	out := make([]Ranked, len(records))
	for i, r := range records {
		out[i] = Ranked{Score: ScoreOf(r), Record: r}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Less(out[j].Score)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// IdentifyWinningCreatives returns the top count records. count is clamped to
// [0, len(records)]; the input slice is left untouched.
func IdentifyWinningCreatives(records []domain.PerformanceRecord, count int) []domain.PerformanceRecord {
	if count <= 0 || len(records) == 0 {
		return []domain.PerformanceRecord{}
	}
	if count > len(records) {
		count = len(records)
	}
	ranked := Rank(records)
	out := make([]domain.PerformanceRecord, count)
	for i := 0; i < count; i++ {
		out[i] = ranked[i].Record
	}
	return out
}
