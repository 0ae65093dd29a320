package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/idhash"
	"rwa-portfolio/internal/storage"
)

func createTestRecord(txHash, assetID, user string, at time.Time) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:          idhash.ComputeRecordID(txHash, assetID, string(domain.TransactionTypeDeposit)),
		TxHash:      txHash,
		AssetID:     assetID,
		Type:        domain.TransactionTypeDeposit,
		Amount:      1250.5,
		UserAddress: user,
		Status:      domain.TransactionStatusCompleted,
		Timestamp:   at,
	}
}

func TestLedgerStore_InsertAndGetByTxHash(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLedgerStore(pool)
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := createTestRecord("0xaaa1", "tbill-2026", "0xUser", at)

	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByTxHash(ctx, "0xaaa1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.AssetID, got.AssetID)
	assert.Equal(t, rec.Type, got.Type)
	assert.InDelta(t, rec.Amount, got.Amount, 1e-9)
	assert.Equal(t, rec.UserAddress, got.UserAddress)
	assert.Equal(t, rec.Status, got.Status)
	assert.True(t, rec.Timestamp.Equal(got.Timestamp))
}

func TestLedgerStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLedgerStore(pool)
	ctx := context.Background()

	rec := createTestRecord("0xdup", "tbill-2026", "0xUser", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, rec))

	err := store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same hash, different ID still collides on tx_hash.
	other := *rec
	other.ID = "different-id"
	err = store.Insert(ctx, &other)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestLedgerStore_TxHashCase(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLedgerStore(pool)
	ctx := context.Background()

	rec := createTestRecord("0xABC1", "tbill-2026", "0xUser", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByTxHash(ctx, "0xabc1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc1", got.TxHash)

	lower := createTestRecord("0xabc1", "tbill-2026", "0xUser", time.Now().UTC())
	lower.ID = "other-id"
	assert.ErrorIs(t, store.Insert(ctx, lower), storage.ErrDuplicateKey)
}

func TestLedgerStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLedgerStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)

	rec := createTestRecord("0xbad", "tbill-2026", "0xUser", time.Now().UTC())
	rec.Type = "Transfer"
	assert.ErrorIs(t, store.Insert(ctx, rec), storage.ErrInvalidInput)
}

func TestLedgerStore_GetByTxHashNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLedgerStore(pool)
	_, err := store.GetByTxHash(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLedgerStore(pool)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, createTestRecord("0x01", "tbill-2026", "0xAlice", base)))
	require.NoError(t, store.Insert(ctx, createTestRecord("0x02", "reit-nyc", "0xalice", base.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, createTestRecord("0x03", "tbill-2026", "0xBob", base.Add(2*time.Hour))))

	all, err := store.List(ctx, storage.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "0x03", all[0].TxHash, "newest first")

	alice, err := store.List(ctx, storage.LedgerFilter{UserAddress: "0xALICE"})
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "0x02", alice[0].TxHash)

	tbill, err := store.List(ctx, storage.LedgerFilter{AssetID: "tbill-2026", Limit: 1})
	require.NoError(t, err)
	require.Len(t, tbill, 1)
	assert.Equal(t, "0x03", tbill[0].TxHash)
}
