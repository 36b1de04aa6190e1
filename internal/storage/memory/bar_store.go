package memory

import (
	"context"
	"sort"
	"sync"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

type barKey struct {
	symbol   string
	openTime int64
}

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[barKey]*domain.Bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[barKey]*domain.Bar),
	}
}

// InsertBulk adds bars, skipping ones already present for (symbol, open_time).
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		if b == nil || b.Symbol == "" || !domain.IsMinuteAligned(b.OpenTime) {
			return storage.ErrInvalidInput
		}
		key := barKey{b.Symbol, b.OpenTime}
		if _, exists := s.data[key]; exists {
			continue
		}
		cp := *b
		s.data[key] = &cp
	}

	return nil
}

// GetRecent retrieves the most recent n bars for a symbol, ordered by
// open_time ASC.
func (s *BarStore) GetRecent(_ context.Context, symbol string, n int) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.Symbol == symbol {
			cp := *b
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

// GetRange retrieves bars within [start, end] inclusive, ordered by
// open_time ASC.
func (s *BarStore) GetRange(_ context.Context, symbol string, start, end int64) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.Symbol == symbol && b.OpenTime >= start && b.OpenTime <= end {
			cp := *b
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime < result[j].OpenTime
	})

	return result, nil
}

var _ storage.BarStore = (*BarStore)(nil)
