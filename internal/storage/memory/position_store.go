package memory

import (
	"context"
	"sync"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

type positionKey struct {
	traderID string
	symbol   string
}

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[positionKey]*domain.Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[positionKey]*domain.Position),
	}
}

// Upsert writes the position record for (trader_id, symbol).
func (s *PositionStore) Upsert(_ context.Context, p *domain.Position) error {
	if p == nil || p.TraderID == "" || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.data[positionKey{p.TraderID, p.Symbol}] = &cp
	return nil
}

// GetOpen retrieves the open position for (trader_id, symbol).
// Returns ErrNotFound when the trader is flat.
func (s *PositionStore) GetOpen(_ context.Context, traderID, symbol string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionKey{traderID, symbol}]
	if !exists || !p.Open {
		return nil, storage.ErrNotFound
	}

	cp := *p
	return &cp, nil
}

// Close marks the position for (trader_id, symbol) as closed.
func (s *PositionStore) Close(_ context.Context, traderID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[positionKey{traderID, symbol}]
	if !exists {
		return nil
	}

	p.Open = false
	p.Side = domain.PositionFlat
	p.Size = 0
	return nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
