package domain

// PerformanceRecord is one historical ad's metrics snapshot.
type PerformanceRecord struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Spend                float64 `json:"spend"`
	Impressions          int64   `json:"impressions"`
	Leads                int64   `json:"leads"`
	CostPerLead          float64 `json:"cost_per_lead"`
	OutboundCTR          float64 `json:"outbound_ctr"`
	CostPerOutboundClick float64 `json:"cost_per_outbound_click"`
	CPM                  float64 `json:"cpm"`
	ROASOrderVolume      float64 `json:"roas_order_volume"`
	ROASCashCollect      float64 `json:"roas_cash_collect"`
}

// Comparable reports whether the cost and CTR metrics are defined.
func (r PerformanceRecord) Comparable() bool {
	return r.Leads > 0 && r.Impressions > 0
}
