package memory

import (
	"context"
	"sort"
	"sync"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.MetricsSnapshot // keyed by owner
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string][]*domain.MetricsSnapshot),
	}
}

// InsertBulk adds multiple snapshots.
func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.MetricsSnapshot) error {
	for _, snap := range snapshots {
		if snap == nil || snap.Owner == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		copy := *snap
		s.data[snap.Owner] = append(s.data[snap.Owner], &copy)
	}
	return nil
}

// GetByOwnerTimeRange retrieves snapshots within [start, end] (inclusive), ordered by time ASC.
func (s *SnapshotStore) GetByOwnerTimeRange(_ context.Context, owner string, start, end int64) ([]*domain.MetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MetricsSnapshot
	for _, snap := range s.data[owner] {
		if snap.TimestampMs >= start && snap.TimestampMs <= end {
			copy := *snap
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
