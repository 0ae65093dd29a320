package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionRecord // keyed by tx_hash
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		data: make(map[string]*domain.TransactionRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if tx_hash exists in
// any hex case.
func (s *LedgerStore) Insert(_ context.Context, r *domain.TransactionRecord) error {
	if r == nil || r.TxHash == "" || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(r.TxHash)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[key] = &copy
	return nil
}

// GetByTxHash retrieves a record by transaction hash. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetByTxHash(_ context.Context, txHash string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[strings.ToLower(txHash)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// List returns matching records, newest first.
func (s *LedgerStore) List(_ context.Context, filter storage.LedgerFilter) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, r := range s.data {
		if filter.UserAddress != "" && !strings.EqualFold(r.UserAddress, filter.UserAddress) {
			continue
		}
		if filter.AssetID != "" && r.AssetID != filter.AssetID {
			continue
		}
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].TxHash < result[j].TxHash
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
