package memory

import (
	"context"
	"sort"
	"sync"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by exchange_order_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Insert adds a filled order. Returns ErrDuplicateKey if a trade with the
// same exchange_order_id already exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.ExchangeOrderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ExchangeOrderID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.ExchangeOrderID] = &cp
	return nil
}

// GetByOrderID retrieves a trade by its exchange order ID.
func (s *TradeStore) GetByOrderID(_ context.Context, exchangeOrderID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[exchangeOrderID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

// GetByTrader retrieves all trades for a trader, ordered by executed_at ASC.
func (s *TradeStore) GetByTrader(_ context.Context, traderID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.TraderID == traderID {
			cp := *t
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExecutedAt.Before(result[j].ExecutedAt)
	})

	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
