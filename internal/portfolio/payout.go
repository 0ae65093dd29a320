package portfolio

import (
	"time"

	"rwa-portfolio/internal/domain"
)

const payoutDateLayout = "2006-01-02"

// NextPayout returns the earliest payout date among held assets.
// Assets without a parseable date are ignored.
func NextPayout(p *domain.Portfolio, assets Lookup) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}

	var next time.Time
	found := false
	for assetID := range p.Holdings {
		asset, ok := assets[assetID]
		if !ok || asset == nil || asset.NextPayoutDate == "" {
			continue
		}
		d, err := time.Parse(payoutDateLayout, asset.NextPayoutDate)
		if err != nil {
			continue
		}
		if !found || d.Before(next) {
			next = d
			found = true
		}
	}
	return next, found
}
