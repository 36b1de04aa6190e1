package storage

import (
	"context"

	"binance-trade-engine/internal/domain"
)

// TraderStore provides access to trader records.
type TraderStore interface {
	// Insert adds a new trader. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, t *domain.TraderRecord) error

	// GetByID retrieves a trader by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, traderID string) (*domain.TraderRecord, error)

	// GetAll retrieves all traders.
	GetAll(ctx context.Context) ([]*domain.TraderRecord, error)

	// SetActive flips the active flag. Returns ErrNotFound if not exists.
	SetActive(ctx context.Context, traderID string, active bool) error

	// AddPnL adds delta to the trader's cumulative realized PnL.
	AddPnL(ctx context.Context, traderID string, delta float64) error
}

// PositionStore provides access to the locally cached position per
// (trader, symbol). At most one open position exists per key; Upsert
// replaces any previous record for that key.
type PositionStore interface {
	// Upsert writes the position record for (trader_id, symbol).
	Upsert(ctx context.Context, p *domain.Position) error

	// GetOpen retrieves the open position for (trader_id, symbol).
	// Returns ErrNotFound when the trader is flat.
	GetOpen(ctx context.Context, traderID, symbol string) (*domain.Position, error)

	// Close marks the position for (trader_id, symbol) as closed.
	// Closing an already-flat position is not an error.
	Close(ctx context.Context, traderID, symbol string) error
}

// TradeStore provides access to the append-only trade ledger.
type TradeStore interface {
	// Insert adds a filled order. Returns ErrDuplicateKey if a trade with
	// the same exchange_order_id already exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByOrderID retrieves a trade by its exchange order ID.
	// Returns ErrNotFound if not exists.
	GetByOrderID(ctx context.Context, exchangeOrderID string) (*domain.Trade, error)

	// GetByTrader retrieves all trades for a trader, ordered by
	// executed_at ASC.
	GetByTrader(ctx context.Context, traderID string) ([]*domain.Trade, error)
}

// BarStore provides access to persisted bars.
type BarStore interface {
	// InsertBulk adds bars, skipping ones already present for
	// (symbol, open_time). Returns ErrInvalidInput on malformed bars.
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetRecent retrieves the most recent n bars for a symbol, ordered by
	// open_time ASC.
	GetRecent(ctx context.Context, symbol string, n int) ([]*domain.Bar, error)

	// GetRange retrieves bars within [start, end] inclusive, ordered by
	// open_time ASC.
	GetRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error)
}

// IndicatorStore provides access to persisted indicator snapshots.
type IndicatorStore interface {
	// InsertBulk adds snapshots, skipping ones already present for
	// (symbol, open_time).
	InsertBulk(ctx context.Context, snaps []*domain.IndicatorSnapshot) error

	// GetRecent retrieves the most recent n sufficient snapshots for a
	// symbol, ordered by open_time ASC.
	GetRecent(ctx context.Context, symbol string, n int) ([]*domain.IndicatorSnapshot, error)
}

// SystemLogStore provides access to persisted operational events.
type SystemLogStore interface {
	// Insert appends a system log entry.
	Insert(ctx context.Context, l *domain.SystemLog) error

	// GetByTrader retrieves entries for a trader, newest first, up to limit.
	GetByTrader(ctx context.Context, traderID string, limit int) ([]*domain.SystemLog, error)
}
