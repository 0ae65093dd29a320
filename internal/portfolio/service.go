package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/observability"
	"rwa-portfolio/internal/storage"
)

// Summary is an owner's portfolio together with its derived figures.
type Summary struct {
	Portfolio  *domain.Portfolio
	Valuation  Valuation
	Metrics    domain.PortfolioMetrics
	NextPayout time.Time // zero if no held asset has one
}

// Service reads the stored portfolio and asset catalog and derives metrics.
type Service struct {
	catalog storage.AssetCatalog
	store   storage.PortfolioStore
}

// NewService creates a Service.
func NewService(catalog storage.AssetCatalog, store storage.PortfolioStore) *Service {
	return &Service{catalog: catalog, store: store}
}

// Summary computes the current summary of owner. An owner with no stored
// portfolio has an empty one.
func (s *Service) Summary(ctx context.Context, owner string) (*Summary, error) {
	p, err := s.store.Get(ctx, owner)
	if errors.Is(err, storage.ErrNotFound) {
		p = &domain.Portfolio{Owner: owner, Holdings: map[string]float64{}}
	} else if err != nil {
		return nil, fmt.Errorf("get portfolio %s: %w", owner, err)
	}

	assets, err := s.catalog.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	lookup := LookupFromAssets(assets)

	v := Valuate(p, lookup)
	if len(v.Missing) > 0 {
		observability.RecordUnknownAssets(len(v.Missing))
	}

	sum := &Summary{
		Portfolio: p,
		Valuation: v,
		Metrics:   v.Metrics(),
	}
	if next, ok := NextPayout(p, lookup); ok {
		sum.NextPayout = next
	}
	return sum, nil
}

// Snapshot returns the metrics snapshot of owner at the given time.
func (s *Service) Snapshot(ctx context.Context, owner string, at time.Time) (*domain.MetricsSnapshot, error) {
	sum, err := s.Summary(ctx, owner)
	if err != nil {
		return nil, err
	}
	return domain.NewMetricsSnapshot(sum.Portfolio, sum.Metrics, at), nil
}
