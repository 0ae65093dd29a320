// Package reconcile replaces cached holdings with authoritative on-chain
// balances. The chain wins whenever it can be read; the cached value is used
// only when the read fails or the asset has no contract. The two are never merged.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rwa-portfolio/internal/chain"
	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/evm"
	"rwa-portfolio/internal/observability"
	"rwa-portfolio/internal/storage"
)

// DefaultConcurrency bounds parallel balance reads per refresh.
const DefaultConcurrency = 4

// Source tells where a reconciled holding came from.
type Source string

const (
	SourceChain Source = "chain"
	SourceCache Source = "cache"
)

// AssetResult is the reconciled holding of one asset.
type AssetResult struct {
	AssetID string  `json:"assetId"`
	Shares  float64 `json:"shares"`
	Source  Source  `json:"source"`
	Reason  string  `json:"reason,omitempty"`
}

// Report is the outcome of one refresh.
type Report struct {
	Owner  string        `json:"owner"`
	At     time.Time     `json:"at"`
	Assets []AssetResult `json:"assets"`
}

// Holdings returns the non-zero holdings in the report.
func (r *Report) Holdings() map[string]float64 {
	out := make(map[string]float64, len(r.Assets))
	for _, a := range r.Assets {
		if a.Shares != 0 {
			out[a.AssetID] = a.Shares
		}
	}
	return out
}

// CountBySource counts assets per source.
func (r *Report) CountBySource() map[string]int {
	out := make(map[string]int, 2)
	for _, a := range r.Assets {
		out[string(a.Source)]++
	}
	return out
}

// Config configures a Reconciler.
type Config struct {
	Decimals    int32
	Concurrency int
}

// Reconciler refreshes PortfolioStore holdings from the chain.
type Reconciler struct {
	chain    chain.Reader
	registry *chain.Registry
	catalog  storage.AssetCatalog
	store    storage.PortfolioStore
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a Reconciler.
func New(reader chain.Reader, registry *chain.Registry, catalog storage.AssetCatalog, store storage.PortfolioStore, cfg Config, log zerolog.Logger) *Reconciler {
	if cfg.Decimals == 0 {
		cfg.Decimals = evm.DefaultDecimals
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Reconciler{
		chain:    reader,
		registry: registry,
		catalog:  catalog,
		store:    store,
		cfg:      cfg,
		log:      log.With().Str("component", "reconcile").Logger(),
		now:      time.Now,
	}
}

// Refresh reconciles every asset in catalog ∪ cached holdings and replaces
// the owner's holdings in one write.
func (r *Reconciler) Refresh(ctx context.Context, owner string) (*Report, error) {
	report, err := r.refresh(ctx, owner)
	if err != nil {
		observability.RecordReconcile(nil, err)
		return nil, err
	}
	observability.RecordReconcile(report.CountBySource(), nil)
	return report, nil
}

func (r *Reconciler) refresh(ctx context.Context, owner string) (*Report, error) {
	assets, err := r.catalog.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	cached, err := r.cachedHoldings(ctx, owner)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}
	for id := range cached {
		if _, ok := byID[id]; !ok {
			byID[id] = &domain.Asset{ID: id}
		}
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]AssetResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = r.resolve(gctx, owner, byID[id], cached)
			return nil
		})
	}
	_ = g.Wait()

	// A cancelled refresh must not overwrite the cache with fallbacks.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Owner: owner, At: r.now().UTC(), Assets: results}
	if err := r.store.ReplaceHoldings(ctx, owner, report.Holdings(), report.At); err != nil {
		return nil, fmt.Errorf("replace holdings: %w", err)
	}

	r.log.Info().
		Str("owner", owner).
		Int("assets", len(results)).
		Interface("sources", report.CountBySource()).
		Msg("holdings reconciled")
	return report, nil
}

// Holding returns the currently known balance of one asset: the chain
// balance if readable, else the cached value.
func (r *Reconciler) Holding(ctx context.Context, owner, assetID string) (float64, error) {
	asset, err := r.catalog.GetAsset(ctx, assetID)
	if errors.Is(err, storage.ErrNotFound) {
		asset = &domain.Asset{ID: assetID}
	} else if err != nil {
		return 0, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	cached, err := r.cachedHoldings(ctx, owner)
	if err != nil {
		return 0, err
	}
	return r.resolve(ctx, owner, asset, cached).Shares, nil
}

func (r *Reconciler) cachedHoldings(ctx context.Context, owner string) (map[string]float64, error) {
	p, err := r.store.Get(ctx, owner)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]float64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio %s: %w", owner, err)
	}
	return p.Holdings, nil
}

func (r *Reconciler) resolve(ctx context.Context, owner string, asset *domain.Asset, cached map[string]float64) AssetResult {
	fallback := AssetResult{AssetID: asset.ID, Shares: cached[asset.ID], Source: SourceCache}

	contract, ok := r.registry.ContractAddress(asset)
	if !ok {
		fallback.Reason = "no contract"
		return fallback
	}

	balance, err := r.chain.ReadBalance(ctx, contract, owner)
	if err != nil {
		r.log.Warn().Err(err).Str("asset", asset.ID).Msg("balance read failed, using cached holding")
		fallback.Reason = "chain read failed"
		return fallback
	}

	return AssetResult{
		AssetID: asset.ID,
		Shares:  evm.FromWei(balance, r.cfg.Decimals),
		Source:  SourceChain,
	}
}
