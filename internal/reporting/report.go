// Package reporting builds per-owner portfolio statements and renders them
// as Markdown and CSV.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/portfolio"
)

// Report is a portfolio statement for one owner over a period.
type Report struct {
	// Metadata
	Owner       string
	GeneratedAt time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time

	// Current state
	Summary    SummarySection
	Allocation []domain.AllocationSlice
	Positions  []portfolio.PositionView // largest value first

	// Activity within the period, newest first
	Transactions []*domain.TransactionRecord
	Flows        FlowSection

	// Metric history within the period
	History HistorySection

	// Data quality
	MissingAssets []string
}

// SummarySection holds the headline figures.
type SummarySection struct {
	TotalAUM       float64
	CashUSD        float64
	WeightedAPY    float64
	RiskScore      int
	RiskLevel      string
	NextPayoutDate string // YYYY-MM-DD, empty if none
}

// FlowSection totals completed transactions by type.
type FlowSection struct {
	Deposits    float64
	Withdrawals float64
	Payouts     float64
	Pending     int
	Failed      int
}

// Net returns deposits minus withdrawals.
func (f FlowSection) Net() float64 {
	return decimal.NewFromFloat(f.Deposits).Sub(decimal.NewFromFloat(f.Withdrawals)).InexactFloat64()
}

// HistorySection compares the first and last snapshot of the period.
type HistorySection struct {
	Snapshots   int
	StartAUM    float64
	EndAUM      float64
	ChangeAUM   float64
	ChangePct   float64 // 0 when StartAUM is 0
	StartAPY    float64
	EndAPY      float64
	MinRisk     int
	MaxRisk     int
	FirstSample time.Time
	LastSample  time.Time
}
