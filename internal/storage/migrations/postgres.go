package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// RunPostgresMigrations applies pending goose migrations embedded under
// postgres/. Applied versions are tracked in goose_db_version, so reruns are
// no-ops.
func RunPostgresMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	provider, db, err := newPostgresProvider(pool)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply postgres migrations: %w", err)
	}
	for _, r := range results {
		log.Info().
			Int64("version", r.Source.Version).
			Str("file", r.Source.Path).
			Dur("took", r.Duration).
			Msg("postgres migration applied")
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read postgres schema version: %w", err)
	}
	log.Debug().Int64("version", version).Int("applied", len(results)).Msg("postgres schema up to date")
	return nil
}

func newPostgresProvider(pool *pgxpool.Pool) (*goose.Provider, *sql.DB, error) {
	sub, err := fs.Sub(PostgresFS, "postgres")
	if err != nil {
		return nil, nil, fmt.Errorf("open embedded postgres migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, db, nil
}
