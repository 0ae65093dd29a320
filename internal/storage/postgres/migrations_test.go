package postgres

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-portfolio/internal/storage/migrations"
)

func TestMigrations_Rerun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	// setupTestDB already migrated; a second run applies nothing
	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool.Pool, zerolog.Nop()))

	var version int64
	err := pool.QueryRow(ctx, `SELECT MAX(version_id) FROM goose_db_version`).Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	for _, table := range []string{"assets", "portfolios", "portfolio_holdings", "transaction_records"} {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}
