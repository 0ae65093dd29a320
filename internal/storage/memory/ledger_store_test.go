package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

func makeRecord(txHash, assetID, user string, ts time.Time) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:          "id-" + txHash,
		TxHash:      txHash,
		AssetID:     assetID,
		Type:        domain.TransactionTypeDeposit,
		Amount:      100,
		UserAddress: user,
		Status:      domain.TransactionStatusCompleted,
		Timestamp:   ts,
	}
}

func TestLedgerStore_InsertAndGet(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	r := makeRecord("0xaaa", "tbill", "0xuser", time.Unix(1700000000, 0))
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByTxHash(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("GetByTxHash failed: %v", err)
	}
	if got.AssetID != "tbill" || got.Amount != 100 {
		t.Errorf("unexpected record: %+v", got)
	}

	// Returned records are copies.
	got.Amount = 1
	again, _ := store.GetByTxHash(ctx, "0xaaa")
	if again.Amount != 100 {
		t.Errorf("store mutated through returned pointer")
	}
}

func TestLedgerStore_DuplicateTxHash(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	r := makeRecord("0xaaa", "tbill", "0xuser", time.Now())
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	dup := makeRecord("0xaaa", "other", "0xuser", time.Now())
	dup.ID = "different-id"
	err := store.Insert(ctx, dup)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	all, _ := store.List(ctx, storage.LedgerFilter{})
	if len(all) != 1 {
		t.Errorf("expected 1 record after duplicate insert, got %d", len(all))
	}
}

func TestLedgerStore_TxHashCase(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	if err := store.Insert(ctx, makeRecord("0xAbC", "tbill", "0xuser", time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, makeRecord("0xabc", "tbill", "0xuser", time.Now())); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByTxHash(ctx, "0xABC"); err != nil {
		t.Errorf("GetByTxHash with other case: %v", err)
	}
}

func TestLedgerStore_InvalidInput(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.TransactionRecord{ID: "x"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty tx hash, got %v", err)
	}
}

func TestLedgerStore_NotFound(t *testing.T) {
	store := NewLedgerStore()
	_, err := store.GetByTxHash(context.Background(), "0xmissing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerStore_ListFilterAndOrder(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	records := []*domain.TransactionRecord{
		makeRecord("0x1", "tbill", "0xAlice", base),
		makeRecord("0x2", "tbill", "0xalice", base.Add(time.Hour)),
		makeRecord("0x3", "estate", "0xalice", base.Add(2*time.Hour)),
		makeRecord("0x4", "tbill", "0xbob", base.Add(3*time.Hour)),
	}
	for _, r := range records {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.List(ctx, storage.LedgerFilter{UserAddress: "0xALICE", AssetID: "tbill"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].TxHash != "0x2" || got[1].TxHash != "0x1" {
		t.Errorf("expected newest first [0x2 0x1], got [%s %s]", got[0].TxHash, got[1].TxHash)
	}

	limited, _ := store.List(ctx, storage.LedgerFilter{Limit: 1})
	if len(limited) != 1 || limited[0].TxHash != "0x4" {
		t.Errorf("expected only newest record, got %+v", limited)
	}
}

func TestLedgerStore_ConcurrentDuplicateInserts(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Insert(ctx, makeRecord("0xsame", "tbill", "0xuser", time.Now())); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("expected exactly 1 successful insert, got %d", created)
	}
}
