// Package memory provides in-memory store implementations used by tests
// and by runs without external databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// TraderStore is an in-memory implementation of storage.TraderStore.
type TraderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TraderRecord // keyed by trader ID
}

// NewTraderStore creates a new in-memory trader store.
func NewTraderStore() *TraderStore {
	return &TraderStore{
		data: make(map[string]*domain.TraderRecord),
	}
}

// Insert adds a new trader. Returns ErrDuplicateKey if the ID exists.
func (s *TraderStore) Insert(_ context.Context, t *domain.TraderRecord) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.ID] = &cp
	return nil
}

// GetByID retrieves a trader by ID. Returns ErrNotFound if not exists.
func (s *TraderStore) GetByID(_ context.Context, traderID string) (*domain.TraderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[traderID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

// GetAll retrieves all traders, ordered by ID.
func (s *TraderStore) GetAll(_ context.Context) ([]*domain.TraderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TraderRecord, 0, len(s.data))
	for _, t := range s.data {
		cp := *t
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// SetActive flips the active flag. Returns ErrNotFound if not exists.
func (s *TraderStore) SetActive(_ context.Context, traderID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[traderID]
	if !exists {
		return storage.ErrNotFound
	}

	t.Active = active
	return nil
}

// AddPnL adds delta to the trader's cumulative realized PnL.
func (s *TraderStore) AddPnL(_ context.Context, traderID string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[traderID]
	if !exists {
		return storage.ErrNotFound
	}

	t.TotalPnL += delta
	return nil
}

var _ storage.TraderStore = (*TraderStore)(nil)
