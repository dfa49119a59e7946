package ranking

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"adforge/internal/domain"
)

func sampleRecords() []domain.PerformanceRecord {
	return []domain.PerformanceRecord{
		{ID: "a", Name: "Spring promo", Impressions: 1000, Leads: 10, CostPerLead: 12.5, OutboundCTR: 1.1},
		{ID: "b", Name: "No leads", Impressions: 5000, Leads: 0, OutboundCTR: 4.0},
		{ID: "c", Name: "Cheap leads", Impressions: 900, Leads: 20, CostPerLead: 4.0, OutboundCTR: 0.8},
		{ID: "d", Name: "Same cost better ctr", Impressions: 1200, Leads: 5, CostPerLead: 12.5, OutboundCTR: 2.3},
		{ID: "e", Name: "No impressions", Impressions: 0, Leads: 3, CostPerLead: 1.0, OutboundCTR: 9.0},
		{ID: "f", Name: "Exact tie with a", Impressions: 1000, Leads: 10, CostPerLead: 12.5, OutboundCTR: 1.1},
	}
}

func ids(records []domain.PerformanceRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestIdentifyWinningCreativesOrdering(t *testing.T) {
	got := ids(IdentifyWinningCreatives(sampleRecords(), 6))
	want := []string{"c", "d", "a", "f", "b", "e"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestIdentifyWinningCreativesCountClamp(t *testing.T) {
	records := sampleRecords()
	for count := -1; count <= len(records)+2; count++ {
		got := IdentifyWinningCreatives(records, count)
		want := count
		if want < 0 {
			want = 0
		}
		if want > len(records) {
			want = len(records)
		}
		if len(got) != want {
			t.Fatalf("count=%d returned %d records, want %d", count, len(got), want)
		}
		seen := map[string]bool{}
		for _, r := range got {
			if seen[r.ID] {
				t.Fatalf("count=%d returned duplicate %s", count, r.ID)
			}
			seen[r.ID] = true
		}
	}
}

func TestIdentifyWinningCreativesEmptyInput(t *testing.T) {
	got := IdentifyWinningCreatives(nil, 3)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestIdentifyWinningCreativesInvalidSortLast(t *testing.T) {
	got := IdentifyWinningCreatives(sampleRecords(), 6)
	seenInvalid := false
	for _, r := range got {
		if !r.Comparable() {
			seenInvalid = true
			continue
		}
		if seenInvalid {
			t.Fatalf("valid record %s sorted after an invalid one", r.ID)
		}
	}
}

func TestIdentifyWinningCreativesStableAndPure(t *testing.T) {
	records := sampleRecords()
	before := ids(records)
	first := ids(IdentifyWinningCreatives(records, 4))
	second := ids(IdentifyWinningCreatives(records, 4))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("non-deterministic result (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, ids(records)); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
}

func TestRankAssignsPositions(t *testing.T) {
	ranked := Rank(sampleRecords())
	for i, r := range ranked {
		if r.Rank != i+1 {
			t.Fatalf("rank[%d] = %d", i, r.Rank)
		}
	}
	if ranked[len(ranked)-1].Score.Valid {
		t.Fatalf("last ranked record should be invalid")
	}
}
