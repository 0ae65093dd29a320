package domain

import "time"

// AllocationSlice is one group of the allocation breakdown.
type AllocationSlice struct {
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// PortfolioMetrics are the derived figures shown for a portfolio.
type PortfolioMetrics struct {
	TotalAUM    float64           `json:"totalAUM"`
	WeightedAPY float64           `json:"weightedAPY"`
	RiskScore   int               `json:"riskScore"`
	RiskLevel   string            `json:"riskLevel"`
	Allocation  []AllocationSlice `json:"allocation"`
}

// MetricsSnapshot is PortfolioMetrics of one owner at a point in time.
// Corresponds to portfolio_metrics_snapshots table.
type MetricsSnapshot struct {
	Owner       string  `json:"owner"`
	TimestampMs int64   `json:"timestampMs"`
	TotalAUM    float64 `json:"totalAUM"`
	CashUSD     float64 `json:"cashUSD"`
	WeightedAPY float64 `json:"weightedAPY"`
	RiskScore   int     `json:"riskScore"`
	Positions   int     `json:"positions"`
}

// NewMetricsSnapshot builds a snapshot from computed metrics.
func NewMetricsSnapshot(p *Portfolio, m PortfolioMetrics, at time.Time) *MetricsSnapshot {
	return &MetricsSnapshot{
		Owner:       p.Owner,
		TimestampMs: at.UnixMilli(),
		TotalAUM:    m.TotalAUM,
		CashUSD:     p.CashUSD,
		WeightedAPY: m.WeightedAPY,
		RiskScore:   m.RiskScore,
		Positions:   len(p.Holdings),
	}
}
