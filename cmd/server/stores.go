package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"rwa-portfolio/internal/config"
	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
	chstore "rwa-portfolio/internal/storage/clickhouse"
	"rwa-portfolio/internal/storage/memory"
	"rwa-portfolio/internal/storage/migrations"
	pgstore "rwa-portfolio/internal/storage/postgres"
)

// stores holds every store the service uses.
type stores struct {
	catalog    storage.AssetCatalog
	portfolios storage.PortfolioStore
	ledger     storage.LedgerStore
	snapshots  storage.SnapshotStore
	cleanup    func()
}

// createStores opens Postgres and ClickHouse when their DSNs are set and
// falls back to memory per backend otherwise. Migrations run on open.
func createStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	st := &stores{
		catalog:    memory.NewAssetCatalog(),
		portfolios: memory.NewPortfolioStore(),
		ledger:     memory.NewLedgerStore(),
		snapshots:  memory.NewSnapshotStore(),
	}
	var closers []func()
	st.cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		var opts []pgstore.PoolOption
		if cfg.PostgresMaxConns > 0 {
			opts = append(opts, pgstore.WithMaxConns(int32(cfg.PostgresMaxConns)))
		}
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, opts...)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool.Pool, log); err != nil {
			st.cleanup()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		st.catalog = pgstore.NewAssetCatalog(pool)
		st.portfolios = pgstore.NewPortfolioStore(pool)
		st.ledger = pgstore.NewLedgerStore(pool)
		log.Info().Msg("using postgres for catalog, portfolios and ledger")
	} else {
		log.Warn().Msg("POSTGRES_DSN not set, portfolios and ledger are kept in memory")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, log)
		if err != nil {
			st.cleanup()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() {
			if err := conn.Close(); err != nil {
				log.Warn().Err(err).Msg("close clickhouse")
			}
		})
		st.snapshots = chstore.NewSnapshotStore(conn)
		log.Info().Msg("using clickhouse for metrics snapshots")
	}

	return st, nil
}

// seedCatalog upserts the assets of cfg.AssetsFile, or the demo catalog in
// dry-run mode when no file is given.
func seedCatalog(ctx context.Context, catalog storage.AssetCatalog, cfg *config.Config, log zerolog.Logger) error {
	var (
		assets []*domain.Asset
		source string
	)
	switch {
	case cfg.AssetsFile != "":
		data, err := os.ReadFile(cfg.AssetsFile)
		if err != nil {
			return fmt.Errorf("read assets file: %w", err)
		}
		if assets, err = parseAssets(data); err != nil {
			return fmt.Errorf("parse %s: %w", cfg.AssetsFile, err)
		}
		source = cfg.AssetsFile
	case cfg.DryRun:
		var err error
		if assets, err = parseAssets(demoAssets); err != nil {
			return fmt.Errorf("parse demo assets: %w", err)
		}
		source = "demo"
	default:
		return nil
	}

	for _, a := range assets {
		if err := catalog.UpsertAsset(ctx, a); err != nil {
			return fmt.Errorf("upsert asset %s: %w", a.ID, err)
		}
	}
	log.Info().Str("source", source).Int("assets", len(assets)).Msg("asset catalog seeded")
	return nil
}

func parseAssets(data []byte) ([]*domain.Asset, error) {
	var assets []*domain.Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, err
	}
	for i, a := range assets {
		if a == nil || a.ID == "" {
			return nil, fmt.Errorf("asset %d has no id", i)
		}
		if a.RiskScore < 0 || a.RiskScore > 100 {
			return nil, fmt.Errorf("asset %s: risk score %d out of range", a.ID, a.RiskScore)
		}
		if a.APY < 0 || a.Price < 0 {
			return nil, fmt.Errorf("asset %s: negative apy or price", a.ID)
		}
	}
	return assets, nil
}
