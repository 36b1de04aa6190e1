package postgres

import (
	"context"
	"fmt"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
// A partial unique index on (trader_id, symbol) WHERE open enforces the
// one-open-position invariant at the database level.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Upsert writes the position record for (trader_id, symbol).
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.TraderID == "" || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (
			trader_id, symbol, side, size, entry_price, entry_time,
			unrealized_pnl, open
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trader_id, symbol) DO UPDATE SET
			side = EXCLUDED.side,
			size = EXCLUDED.size,
			entry_price = EXCLUDED.entry_price,
			entry_time = EXCLUDED.entry_time,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			open = EXCLUDED.open,
			updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query,
		p.TraderID, p.Symbol, p.Side, p.Size, p.EntryPrice, p.EntryTime,
		p.UnrealizedPnL, p.Open,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// GetOpen retrieves the open position for (trader_id, symbol).
// Returns ErrNotFound when the trader is flat.
func (s *PositionStore) GetOpen(ctx context.Context, traderID, symbol string) (*domain.Position, error) {
	query := `
		SELECT trader_id, symbol, side, size, entry_price, entry_time,
		       unrealized_pnl, open
		FROM positions
		WHERE trader_id = $1 AND symbol = $2 AND open
	`

	var p domain.Position
	err := s.pool.QueryRow(ctx, query, traderID, symbol).Scan(
		&p.TraderID, &p.Symbol, &p.Side, &p.Size, &p.EntryPrice, &p.EntryTime,
		&p.UnrealizedPnL, &p.Open,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open position: %w", err)
	}
	return &p, nil
}

// Close marks the position for (trader_id, symbol) as closed.
func (s *PositionStore) Close(ctx context.Context, traderID, symbol string) error {
	query := `
		UPDATE positions
		SET open = FALSE, side = 'FLAT', size = 0, updated_at = NOW()
		WHERE trader_id = $1 AND symbol = $2 AND open
	`

	if _, err := s.pool.Exec(ctx, query, traderID, symbol); err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	return nil
}
