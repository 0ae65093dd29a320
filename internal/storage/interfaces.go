package storage

import (
	"context"
	"time"

	"rwa-portfolio/internal/domain"
)

// AssetCatalog provides access to the assets reference table.
type AssetCatalog interface {
	// GetAsset retrieves an asset by ID. Returns ErrNotFound if not exists.
	GetAsset(ctx context.Context, id string) (*domain.Asset, error)

	// ListAssets returns all assets ordered by ID.
	ListAssets(ctx context.Context) ([]*domain.Asset, error)

	// UpsertAsset inserts or replaces an asset.
	UpsertAsset(ctx context.Context, a *domain.Asset) error
}

// PortfolioStore provides access to cached holdings and cash per owner.
// Holdings are replaced as a whole, never patched per asset.
type PortfolioStore interface {
	// Get retrieves an owner's portfolio. Returns ErrNotFound if not exists.
	Get(ctx context.Context, owner string) (*domain.Portfolio, error)

	// ReplaceHoldings atomically replaces all holdings of owner.
	ReplaceHoldings(ctx context.Context, owner string, holdings map[string]float64, at time.Time) error

	// SetCash sets the uninvested cash balance of owner.
	SetCash(ctx context.Context, owner string, cashUSD float64, at time.Time) error

	// ListOwners returns all owners with a stored portfolio, ordered.
	ListOwners(ctx context.Context) ([]string, error)
}

// LedgerFilter narrows a ledger listing. Empty fields match everything.
type LedgerFilter struct {
	UserAddress string
	AssetID     string
	Limit       int
}

// LedgerStore provides access to transaction_records storage.
type LedgerStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if tx_hash exists.
	Insert(ctx context.Context, r *domain.TransactionRecord) error

	// GetByTxHash retrieves a record by transaction hash. Returns ErrNotFound if not exists.
	GetByTxHash(ctx context.Context, txHash string) (*domain.TransactionRecord, error)

	// List returns matching records, newest first.
	List(ctx context.Context, filter LedgerFilter) ([]*domain.TransactionRecord, error)
}

// SnapshotStore provides access to portfolio_metrics_snapshots storage.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshots.
	InsertBulk(ctx context.Context, snapshots []*domain.MetricsSnapshot) error

	// GetByOwnerTimeRange retrieves snapshots within [start, end] (inclusive, ms), ordered by time ASC.
	GetByOwnerTimeRange(ctx context.Context, owner string, start, end int64) ([]*domain.MetricsSnapshot, error)
}
