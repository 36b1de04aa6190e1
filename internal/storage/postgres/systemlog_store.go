package postgres

import (
	"context"
	"fmt"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// SystemLogStore implements storage.SystemLogStore using PostgreSQL.
type SystemLogStore struct {
	pool *Pool
}

// NewSystemLogStore creates a new SystemLogStore.
func NewSystemLogStore(pool *Pool) *SystemLogStore {
	return &SystemLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SystemLogStore = (*SystemLogStore)(nil)

// Insert appends a system log entry.
func (s *SystemLogStore) Insert(ctx context.Context, l *domain.SystemLog) error {
	if l == nil || l.Component == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO system_logs (trader_id, log_level, component, event, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		l.TraderID, l.Level, l.Component, l.Event, l.Message, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

// GetByTrader retrieves entries for a trader, newest first, up to limit.
func (s *SystemLogStore) GetByTrader(ctx context.Context, traderID string, limit int) ([]*domain.SystemLog, error) {
	query := `
		SELECT trader_id, log_level, component, event, message, created_at
		FROM system_logs
		WHERE trader_id = $1
		ORDER BY created_at DESC
	`
	args := []any{traderID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get system logs by trader: %w", err)
	}
	defer rows.Close()

	var logs []*domain.SystemLog
	for rows.Next() {
		var l domain.SystemLog
		err := rows.Scan(&l.TraderID, &l.Level, &l.Component, &l.Event, &l.Message, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan system log row: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate system log rows: %w", err)
	}

	return logs, nil
}
