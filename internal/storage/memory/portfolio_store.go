package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
type PortfolioStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Portfolio // keyed by owner
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		data: make(map[string]*domain.Portfolio),
	}
}

// Get retrieves an owner's portfolio. Returns ErrNotFound if not exists.
func (s *PortfolioStore) Get(_ context.Context, owner string) (*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[owner]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// ReplaceHoldings atomically replaces all holdings of owner.
func (s *PortfolioStore) ReplaceHoldings(_ context.Context, owner string, holdings map[string]float64, at time.Time) error {
	if owner == "" {
		return storage.ErrInvalidInput
	}

	next := make(map[string]float64, len(holdings))
	for id, shares := range holdings {
		next[id] = shares
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(owner)
	p.Holdings = next
	p.LastUpdated = at
	return nil
}

// SetCash sets the uninvested cash balance of owner.
func (s *PortfolioStore) SetCash(_ context.Context, owner string, cashUSD float64, at time.Time) error {
	if owner == "" || cashUSD < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(owner)
	p.CashUSD = cashUSD
	p.LastUpdated = at
	return nil
}

// ListOwners returns all owners with a stored portfolio, ordered.
func (s *PortfolioStore) ListOwners(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := make([]string, 0, len(s.data))
	for owner := range s.data {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

// getOrCreate must be called with mu held.
func (s *PortfolioStore) getOrCreate(owner string) *domain.Portfolio {
	p, exists := s.data[owner]
	if !exists {
		p = &domain.Portfolio{Owner: owner, Holdings: map[string]float64{}}
		s.data[owner] = p
	}
	return p
}

var _ storage.PortfolioStore = (*PortfolioStore)(nil)
