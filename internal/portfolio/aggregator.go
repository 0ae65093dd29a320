// Package portfolio derives portfolio metrics from holdings and catalog data.
// Every function here is pure over its inputs and degrades to zero or empty
// values on missing data instead of failing.
package portfolio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"rwa-portfolio/internal/domain"
)

// CashLabel is the allocation group for uninvested cash.
const CashLabel = "Cash"

// Lookup resolves asset IDs to catalog records.
type Lookup map[string]*domain.Asset

// LookupFromAssets indexes a catalog listing by asset ID.
func LookupFromAssets(assets []*domain.Asset) Lookup {
	l := make(Lookup, len(assets))
	for _, a := range assets {
		if a != nil {
			l[a.ID] = a
		}
	}
	return l
}

// valuedPosition is a holding whose asset resolved in the catalog.
type valuedPosition struct {
	asset  *domain.Asset
	shares float64
	value  float64
}

// Valuation is the intermediate result shared by all metric functions.
type Valuation struct {
	TotalAUM float64
	CashUSD  float64

	// Missing lists holdings whose asset ID did not resolve (data quality).
	Missing []string

	positions []valuedPosition
}

// Valuate prices every resolvable holding. Holdings are visited in asset ID
// order so that group ordering downstream is deterministic.
func Valuate(p *domain.Portfolio, assets Lookup) Valuation {
	if p == nil {
		return Valuation{}
	}

	v := Valuation{
		TotalAUM: p.CashUSD,
		CashUSD:  p.CashUSD,
	}

	for _, pos := range p.Positions() {
		asset, ok := assets[pos.AssetID]
		if !ok || asset == nil {
			v.Missing = append(v.Missing, pos.AssetID)
			continue
		}
		value := pos.Shares * asset.Price
		v.positions = append(v.positions, valuedPosition{asset: asset, shares: pos.Shares, value: value})
		v.TotalAUM += value
	}

	return v
}

// TotalAUM returns cash plus the value of every resolved holding.
func TotalAUM(p *domain.Portfolio, assets Lookup) float64 {
	return Valuate(p, assets).TotalAUM
}

// WeightedAPY returns the value-weighted APY. Cash is part of the weight
// with zero yield.
func WeightedAPY(p *domain.Portfolio, assets Lookup) float64 {
	return Valuate(p, assets).weightedMean(func(a *domain.Asset) float64 { return a.APY })
}

// WeightedRiskScore returns the value-weighted risk score rounded half-up.
func WeightedRiskScore(p *domain.Portfolio, assets Lookup) int {
	return Valuate(p, assets).riskScore()
}

// Allocation groups holdings by type label and appends the cash group.
func Allocation(p *domain.Portfolio, assets Lookup) []domain.AllocationSlice {
	return Valuate(p, assets).allocation()
}

// ComputeMetrics returns every derived figure in one pass.
func ComputeMetrics(p *domain.Portfolio, assets Lookup) domain.PortfolioMetrics {
	return Valuate(p, assets).Metrics()
}

// Metrics returns every derived figure for this valuation.
func (v Valuation) Metrics() domain.PortfolioMetrics {
	risk := v.riskScore()
	return domain.PortfolioMetrics{
		TotalAUM:    v.TotalAUM,
		WeightedAPY: v.weightedMean(func(a *domain.Asset) float64 { return a.APY }),
		RiskScore:   risk,
		RiskLevel:   domain.RiskLevel(risk),
		Allocation:  v.allocation(),
	}
}

func (v Valuation) riskScore() int {
	return RoundHalfUp(v.weightedMean(func(a *domain.Asset) float64 { return float64(a.RiskScore) }))
}

// weightedMean averages field over resolved positions plus cash (field 0),
// weighted by value. Zero AUM yields 0.
func (v Valuation) weightedMean(field func(*domain.Asset) float64) float64 {
	if v.TotalAUM == 0 {
		return 0
	}

	xs := make([]float64, 0, len(v.positions)+1)
	ws := make([]float64, 0, len(v.positions)+1)
	for _, pos := range v.positions {
		xs = append(xs, field(pos.asset))
		ws = append(ws, pos.value)
	}
	xs = append(xs, 0)
	ws = append(ws, v.CashUSD)

	mean := stat.Mean(xs, ws)
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0
	}
	return mean
}

func (v Valuation) allocation() []domain.AllocationSlice {
	var order []string
	values := make(map[string]float64)
	for _, pos := range v.positions {
		label := domain.AssetTypeLabel(pos.asset.Type)
		if _, seen := values[label]; !seen {
			order = append(order, label)
		}
		values[label] += pos.value
	}
	if _, seen := values[CashLabel]; !seen {
		order = append(order, CashLabel)
	}
	values[CashLabel] += v.CashUSD

	out := make([]domain.AllocationSlice, 0, len(order))
	for _, label := range order {
		value := values[label]
		if value <= 0 {
			continue
		}
		pct := 0.0
		if v.TotalAUM > 0 {
			pct = value / v.TotalAUM * 100
		}
		out = append(out, domain.AllocationSlice{Type: label, Value: value, Percentage: pct})
	}
	return out
}

// RoundHalfUp rounds to the nearest integer with halves toward +Inf.
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// PositionView is a priced holding as returned to API clients.
type PositionView struct {
	AssetID   string           `json:"assetId"`
	Shares    float64          `json:"shares"`
	Value     float64          `json:"value"`
	APY       float64          `json:"apy"`
	RiskScore int              `json:"riskScore"`
	Type      domain.AssetType `json:"type"`
}

// Positions returns priced views of the resolved holdings, largest value first.
func (v Valuation) Positions() []PositionView {
	out := make([]PositionView, 0, len(v.positions))
	for _, pos := range v.positions {
		out = append(out, PositionView{
			AssetID:   pos.asset.ID,
			Shares:    pos.shares,
			Value:     pos.value,
			APY:       pos.asset.APY,
			RiskScore: pos.asset.RiskScore,
			Type:      pos.asset.Type,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}
