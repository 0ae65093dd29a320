package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

// AssetCatalog implements storage.AssetCatalog using PostgreSQL.
type AssetCatalog struct {
	pool *Pool
}

// NewAssetCatalog creates a new AssetCatalog.
func NewAssetCatalog(pool *Pool) *AssetCatalog {
	return &AssetCatalog{pool: pool}
}

// Compile-time interface check.
var _ storage.AssetCatalog = (*AssetCatalog)(nil)

const assetColumns = `asset_id, name, asset_type, apy, risk_score, price, status,
	token_address, duration_days, next_payout_date`

// GetAsset retrieves an asset by ID. Returns ErrNotFound if not exists.
func (s *AssetCatalog) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE asset_id = $1`, id)
	a, err := scanAsset(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// ListAssets returns all assets ordered by ID.
func (s *AssetCatalog) ListAssets(ctx context.Context) ([]*domain.Asset, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY asset_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}
	return assets, nil
}

// UpsertAsset inserts or replaces an asset.
func (s *AssetCatalog) UpsertAsset(ctx context.Context, a *domain.Asset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (asset_id) DO UPDATE SET
			name = EXCLUDED.name,
			asset_type = EXCLUDED.asset_type,
			apy = EXCLUDED.apy,
			risk_score = EXCLUDED.risk_score,
			price = EXCLUDED.price,
			status = EXCLUDED.status,
			token_address = EXCLUDED.token_address,
			duration_days = EXCLUDED.duration_days,
			next_payout_date = EXCLUDED.next_payout_date
	`,
		a.ID, a.Name, string(a.Type), a.APY, a.RiskScore, a.Price, string(a.Status),
		a.TokenAddress, a.DurationDays, a.NextPayoutDate,
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

// scanAsset scans a single row into an Asset.
func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var (
		a             domain.Asset
		assetType, st string
	)
	err := row.Scan(
		&a.ID, &a.Name, &assetType, &a.APY, &a.RiskScore, &a.Price, &st,
		&a.TokenAddress, &a.DurationDays, &a.NextPayoutDate,
	)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AssetType(assetType)
	a.Status = domain.AssetStatus(st)
	return &a, nil
}
