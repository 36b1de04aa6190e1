package memory

import (
	"context"
	"sort"
	"sync"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// IndicatorStore is an in-memory implementation of storage.IndicatorStore.
type IndicatorStore struct {
	mu   sync.RWMutex
	data map[barKey]*domain.IndicatorSnapshot
}

// NewIndicatorStore creates a new in-memory indicator store.
func NewIndicatorStore() *IndicatorStore {
	return &IndicatorStore{
		data: make(map[barKey]*domain.IndicatorSnapshot),
	}
}

// InsertBulk adds snapshots, skipping ones already present for
// (symbol, open_time).
func (s *IndicatorStore) InsertBulk(_ context.Context, snaps []*domain.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		if snap == nil || snap.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := barKey{snap.Symbol, snap.OpenTime}
		if _, exists := s.data[key]; exists {
			continue
		}
		cp := *snap
		s.data[key] = &cp
	}

	return nil
}

// GetRecent retrieves the most recent n sufficient snapshots for a symbol,
// ordered by open_time ASC.
func (s *IndicatorStore) GetRecent(_ context.Context, symbol string, n int) ([]*domain.IndicatorSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IndicatorSnapshot
	for _, snap := range s.data {
		if snap.Symbol == symbol && snap.Sufficient {
			cp := *snap
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime < result[j].OpenTime
	})

	if n > 0 && len(result) > n {
		result = result[len(result)-n:]
	}

	return result, nil
}

var _ storage.IndicatorStore = (*IndicatorStore)(nil)
