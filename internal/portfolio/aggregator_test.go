package portfolio

import (
	"math"
	"testing"

	"rwa-portfolio/internal/domain"
)

func makeAsset(id string, typ domain.AssetType, apy float64, risk int, price float64) *domain.Asset {
	return &domain.Asset{
		ID:        id,
		Name:      "Asset " + id,
		Type:      typ,
		APY:       apy,
		RiskScore: risk,
		Price:     price,
		Status:    domain.AssetStatusActive,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeMetrics_TwoAssetsNoCash(t *testing.T) {
	assets := LookupFromAssets([]*domain.Asset{
		makeAsset("A", domain.AssetTypeTreasury, 10, 20, 100),
		makeAsset("B", domain.AssetTypeCredit, 4, 5, 100),
	})
	p := &domain.Portfolio{
		Owner:    "0xowner",
		Holdings: map[string]float64{"A": 10, "B": 10},
	}

	m := ComputeMetrics(p, assets)

	if !approxEqual(m.TotalAUM, 2000) {
		t.Errorf("TotalAUM: expected 2000, got %v", m.TotalAUM)
	}
	if !approxEqual(m.WeightedAPY, 7.0) {
		t.Errorf("WeightedAPY: expected 7.0, got %v", m.WeightedAPY)
	}
	if m.RiskScore != 13 {
		t.Errorf("RiskScore: expected 13 (12.5 rounded half-up), got %d", m.RiskScore)
	}
	if m.RiskLevel != domain.RiskLevelLow {
		t.Errorf("RiskLevel: expected %s, got %s", domain.RiskLevelLow, m.RiskLevel)
	}
}

func TestComputeMetrics_CashDilutesYield(t *testing.T) {
	assets := LookupFromAssets([]*domain.Asset{
		makeAsset("A", domain.AssetTypeTreasury, 10, 40, 100),
	})
	p := &domain.Portfolio{
		Holdings: map[string]float64{"A": 10},
		CashUSD:  1000,
	}

	m := ComputeMetrics(p, assets)

	if !approxEqual(m.TotalAUM, 2000) {
		t.Errorf("TotalAUM: expected 2000, got %v", m.TotalAUM)
	}
	if !approxEqual(m.WeightedAPY, 5) {
		t.Errorf("WeightedAPY: expected 5, got %v", m.WeightedAPY)
	}
	if m.RiskScore != 20 {
		t.Errorf("RiskScore: expected 20, got %d", m.RiskScore)
	}
}

func TestComputeMetrics_ZeroAUM(t *testing.T) {
	assets := LookupFromAssets([]*domain.Asset{
		makeAsset("A", domain.AssetTypeTreasury, 10, 20, 100),
	})
	p := &domain.Portfolio{Holdings: map[string]float64{}}

	m := ComputeMetrics(p, assets)

	if m.TotalAUM != 0 || m.WeightedAPY != 0 || m.RiskScore != 0 {
		t.Errorf("expected all zero metrics, got %+v", m)
	}
	if len(m.Allocation) != 0 {
		t.Errorf("expected empty allocation, got %+v", m.Allocation)
	}
	if m.RiskLevel != domain.RiskLevelLow {
		t.Errorf("expected %s for score 0, got %s", domain.RiskLevelLow, m.RiskLevel)
	}
}

func TestComputeMetrics_NilPortfolio(t *testing.T) {
	m := ComputeMetrics(nil, nil)
	if m.TotalAUM != 0 || m.WeightedAPY != 0 {
		t.Errorf("expected zero metrics for nil portfolio, got %+v", m)
	}
}

func TestValuate_UnknownAssetSkipped(t *testing.T) {
	assets := LookupFromAssets([]*domain.Asset{
		makeAsset("A", domain.AssetTypeTreasury, 8, 10, 50),
	})
	p := &domain.Portfolio{
		Holdings: map[string]float64{"A": 2, "ghost": 1000},
		CashUSD:  100,
	}

	v := Valuate(p, assets)

	if !approxEqual(v.TotalAUM, 200) {
		t.Errorf("TotalAUM: expected 200, got %v", v.TotalAUM)
	}
	if len(v.Missing) != 1 || v.Missing[0] != "ghost" {
		t.Errorf("Missing: expected [ghost], got %v", v.Missing)
	}
	if len(v.Positions()) != 1 {
		t.Errorf("expected 1 priced position, got %d", len(v.Positions()))
	}
}

func TestAllocation_SumsToHundred(t *testing.T) {
	assets := LookupFromAssets([]*domain.Asset{
		makeAsset("A", domain.AssetTypeRealEstate, 7, 30, 12.5),
		makeAsset("B", domain.AssetTypeRealEstate, 6, 25, 3),
		makeAsset("C", domain.AssetTypeInvoices, 11, 50, 1.1),
		makeAsset("D", domain.AssetTypeBonds, 4, 10, 98.7),
	})
	p := &domain.Portfolio{
		Holdings: map[string]float64{"A": 13, "B": 7, "C": 333, "D": 2},
		CashUSD:  421.37,
	}

	alloc := Allocation(p, assets)

	sum := 0.0
	for _, s := range alloc {
		sum += s.Percentage
	}
	if math.Abs(sum-100) > 1e-6 {
		t.Errorf("percentages should sum to 100, got %v", sum)
	}

	// A and B share the Real Estate label.
	labels := make(map[string]bool)
	for _, s := range alloc {
		if labels[s.Type] {
			t.Errorf("duplicate allocation group %q", s.Type)
		}
		labels[s.Type] = true
	}
	for _, want := range []string{"Real Estate", "Invoices", "Bonds", CashLabel} {
		if !labels[want] {
			t.Errorf("missing allocation group %q", want)
		}
	}
}

func TestAllocation_OmitsEmptyCash(t *testing.T) {
	assets := LookupFromAssets([]*domain.Asset{
		makeAsset("A", domain.AssetTypeCredit, 9, 40, 10),
	})
	p := &domain.Portfolio{Holdings: map[string]float64{"A": 5}}

	alloc := Allocation(p, assets)

	if len(alloc) != 1 {
		t.Fatalf("expected 1 group, got %d: %+v", len(alloc), alloc)
	}
	if alloc[0].Type != "Credit" || !approxEqual(alloc[0].Percentage, 100) {
		t.Errorf("unexpected group: %+v", alloc[0])
	}
}

func TestAllocation_CashLast(t *testing.T) {
	assets := LookupFromAssets([]*domain.Asset{
		makeAsset("A", domain.AssetTypeTreasury, 5, 5, 1),
	})
	p := &domain.Portfolio{Holdings: map[string]float64{"A": 10}, CashUSD: 10}

	alloc := Allocation(p, assets)

	if len(alloc) != 2 || alloc[1].Type != CashLabel {
		t.Errorf("expected cash as last group, got %+v", alloc)
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{12.5, 13},
		{12.49, 12},
		{0, 0},
		{44.5, 45},
		{-2.5, -2},
	}
	for _, tt := range tests {
		if got := RoundHalfUp(tt.in); got != tt.want {
			t.Errorf("RoundHalfUp(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNextPayout(t *testing.T) {
	a := makeAsset("A", domain.AssetTypeTreasury, 5, 5, 1)
	a.NextPayoutDate = "2026-03-01"
	b := makeAsset("B", domain.AssetTypeCredit, 5, 5, 1)
	b.NextPayoutDate = "2026-02-15"
	c := makeAsset("C", domain.AssetTypeCredit, 5, 5, 1)
	c.NextPayoutDate = "not-a-date"
	unheld := makeAsset("D", domain.AssetTypeCredit, 5, 5, 1)
	unheld.NextPayoutDate = "2025-01-01"

	assets := LookupFromAssets([]*domain.Asset{a, b, c, unheld})
	p := &domain.Portfolio{Holdings: map[string]float64{"A": 1, "B": 1, "C": 1}}

	next, ok := NextPayout(p, assets)
	if !ok {
		t.Fatal("expected a payout date")
	}
	if got := next.Format(payoutDateLayout); got != "2026-02-15" {
		t.Errorf("expected 2026-02-15, got %s", got)
	}

	if _, ok := NextPayout(&domain.Portfolio{}, assets); ok {
		t.Error("expected no payout for empty portfolio")
	}
}
