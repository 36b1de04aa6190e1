package memory

import (
	"context"
	"sync"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// SystemLogStore is an in-memory implementation of storage.SystemLogStore.
type SystemLogStore struct {
	mu   sync.RWMutex
	data []*domain.SystemLog // append order == insert order
}

// NewSystemLogStore creates a new in-memory system log store.
func NewSystemLogStore() *SystemLogStore {
	return &SystemLogStore{}
}

// Insert appends a system log entry.
func (s *SystemLogStore) Insert(_ context.Context, l *domain.SystemLog) error {
	if l == nil || l.Component == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.data = append(s.data, &cp)
	return nil
}

// GetByTrader retrieves entries for a trader, newest first, up to limit.
func (s *SystemLogStore) GetByTrader(_ context.Context, traderID string, limit int) ([]*domain.SystemLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SystemLog
	for i := len(s.data) - 1; i >= 0; i-- {
		if s.data[i].TraderID != traderID {
			continue
		}
		cp := *s.data[i]
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

var _ storage.SystemLogStore = (*SystemLogStore)(nil)
