package memory

import (
	"context"
	"sort"
	"sync"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

// AssetCatalog is an in-memory implementation of storage.AssetCatalog.
type AssetCatalog struct {
	mu   sync.RWMutex
	data map[string]*domain.Asset // keyed by asset ID
}

// NewAssetCatalog creates a catalog seeded with assets.
func NewAssetCatalog(assets ...*domain.Asset) *AssetCatalog {
	c := &AssetCatalog{data: make(map[string]*domain.Asset, len(assets))}
	for _, a := range assets {
		if a != nil && a.ID != "" {
			copy := *a
			c.data[a.ID] = &copy
		}
	}
	return c
}

// GetAsset retrieves an asset by ID. Returns ErrNotFound if not exists.
func (c *AssetCatalog) GetAsset(_ context.Context, id string) (*domain.Asset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, exists := c.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

// ListAssets returns all assets ordered by ID.
func (c *AssetCatalog) ListAssets(_ context.Context) ([]*domain.Asset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*domain.Asset, 0, len(c.data))
	for _, a := range c.data {
		copy := *a
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpsertAsset inserts or replaces an asset.
func (c *AssetCatalog) UpsertAsset(_ context.Context, a *domain.Asset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy := *a
	c.data[a.ID] = &copy
	return nil
}

var _ storage.AssetCatalog = (*AssetCatalog)(nil)
