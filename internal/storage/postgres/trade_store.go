package postgres

import (
	"context"
	"fmt"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a filled order. Returns ErrDuplicateKey if a trade with the
// same exchange_order_id already exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.ExchangeOrderID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			trader_id, symbol, side, position_side, quantity, price,
			kind, realized_pnl, exchange_order_id, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TraderID, t.Symbol, t.Side, t.PositionSide, t.Quantity, t.Price,
		t.Kind, t.RealizedPnL, t.ExchangeOrderID, t.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByOrderID retrieves a trade by its exchange order ID.
func (s *TradeStore) GetByOrderID(ctx context.Context, exchangeOrderID string) (*domain.Trade, error) {
	row := s.pool.QueryRow(ctx, selectTradeQuery+` WHERE exchange_order_id = $1`, exchangeOrderID)

	var t domain.Trade
	err := row.Scan(
		&t.TraderID, &t.Symbol, &t.Side, &t.PositionSide, &t.Quantity, &t.Price,
		&t.Kind, &t.RealizedPnL, &t.ExchangeOrderID, &t.ExecutedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by order id: %w", err)
	}
	return &t, nil
}

// GetByTrader retrieves all trades for a trader, ordered by executed_at ASC.
func (s *TradeStore) GetByTrader(ctx context.Context, traderID string) ([]*domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		selectTradeQuery+` WHERE trader_id = $1 ORDER BY executed_at ASC, exchange_order_id ASC`,
		traderID,
	)
	if err != nil {
		return nil, fmt.Errorf("get trades by trader: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		err := rows.Scan(
			&t.TraderID, &t.Symbol, &t.Side, &t.PositionSide, &t.Quantity, &t.Price,
			&t.Kind, &t.RealizedPnL, &t.ExchangeOrderID, &t.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

const selectTradeQuery = `
	SELECT trader_id, symbol, side, position_side, quantity, price,
	       kind, realized_pnl, exchange_order_id, executed_at
	FROM trades
`
