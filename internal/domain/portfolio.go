package domain

import (
	"sort"
	"time"
)

// Position is a single (asset, shares) pair.
type Position struct {
	AssetID string
	Shares  float64
}

// Portfolio is the holdings and cash of one wallet owner.
// Holdings are only ever replaced as a whole, never patched per asset.
type Portfolio struct {
	Owner       string
	Holdings    map[string]float64 // asset_id -> shares
	CashUSD     float64
	LastUpdated time.Time
}

// Positions returns holdings as a slice sorted by asset ID.
func (p *Portfolio) Positions() []Position {
	if p == nil {
		return nil
	}
	out := make([]Position, 0, len(p.Holdings))
	for id, shares := range p.Holdings {
		out = append(out, Position{AssetID: id, Shares: shares})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Clone returns a deep copy.
func (p *Portfolio) Clone() *Portfolio {
	if p == nil {
		return nil
	}
	c := *p
	c.Holdings = make(map[string]float64, len(p.Holdings))
	for k, v := range p.Holdings {
		c.Holdings[k] = v
	}
	return &c
}
