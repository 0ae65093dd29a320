package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

// PortfolioStore implements storage.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *Pool
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(pool *Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)

// Get retrieves an owner's portfolio. Returns ErrNotFound if not exists.
func (s *PortfolioStore) Get(ctx context.Context, owner string) (*domain.Portfolio, error) {
	p := &domain.Portfolio{Owner: owner, Holdings: map[string]float64{}}

	err := s.pool.QueryRow(ctx,
		`SELECT cash_usd, last_updated FROM portfolios WHERE owner = $1`, owner,
	).Scan(&p.CashUSD, &p.LastUpdated)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	p.LastUpdated = p.LastUpdated.UTC()

	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, shares FROM portfolio_holdings WHERE owner = $1`, owner)
	if err != nil {
		return nil, fmt.Errorf("get holdings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			assetID string
			shares  float64
		)
		if err := rows.Scan(&assetID, &shares); err != nil {
			return nil, fmt.Errorf("scan holding row: %w", err)
		}
		p.Holdings[assetID] = shares
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holding rows: %w", err)
	}
	return p, nil
}

// ReplaceHoldings atomically replaces all holdings of owner.
func (s *PortfolioStore) ReplaceHoldings(ctx context.Context, owner string, holdings map[string]float64, at time.Time) (err error) {
	if owner == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("replace_holdings", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO portfolios (owner, last_updated) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET last_updated = EXCLUDED.last_updated
	`, owner, at); err != nil {
		return fmt.Errorf("upsert portfolio: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM portfolio_holdings WHERE owner = $1`, owner); err != nil {
		return fmt.Errorf("delete holdings: %w", err)
	}

	if len(holdings) > 0 {
		ids := make([]string, 0, len(holdings))
		for id := range holdings {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		rows := make([][]any, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, []any{owner, id, holdings[id]})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"portfolio_holdings"},
			[]string{"owner", "asset_id", "shares"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy holdings: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SetCash sets the uninvested cash balance of owner.
func (s *PortfolioStore) SetCash(ctx context.Context, owner string, cashUSD float64, at time.Time) error {
	if owner == "" || cashUSD < 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO portfolios (owner, cash_usd, last_updated) VALUES ($1, $2, $3)
		ON CONFLICT (owner) DO UPDATE
		SET cash_usd = EXCLUDED.cash_usd, last_updated = EXCLUDED.last_updated
	`, owner, cashUSD, at)
	if err != nil {
		return fmt.Errorf("set cash: %w", err)
	}
	return nil
}

// ListOwners returns all owners with a stored portfolio, ordered.
func (s *PortfolioStore) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT owner FROM portfolios ORDER BY owner ASC`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect owners: %w", err)
	}
	return owners, nil
}
