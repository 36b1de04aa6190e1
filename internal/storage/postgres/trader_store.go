package postgres

import (
	"context"
	"fmt"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// TraderStore implements storage.TraderStore using PostgreSQL.
type TraderStore struct {
	pool *Pool
}

// NewTraderStore creates a new TraderStore.
func NewTraderStore(pool *Pool) *TraderStore {
	return &TraderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TraderStore = (*TraderStore)(nil)

// Insert adds a new trader. Returns ErrDuplicateKey if the ID exists.
func (s *TraderStore) Insert(ctx context.Context, t *domain.TraderRecord) error {
	query := `
		INSERT INTO traders (
			trader_id, symbol,
			strategy_type, macd_fast, macd_slow, macd_signal,
			atr_period, atr_multiplier, min_atr_ratio, max_loss,
			allocated_budget, investment_amount, total_pnl, active
		) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Symbol,
		t.Strategy.StrategyType, t.Strategy.MACDFast, t.Strategy.MACDSlow, t.Strategy.MACDSignal,
		t.Strategy.ATRPeriod, t.Strategy.ATRMultiplier, t.Strategy.MinATRRatio, t.Strategy.MaxLoss,
		t.AllocatedBudget, t.InvestmentAmount, t.TotalPnL, t.Active,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trader: %w", err)
	}
	return nil
}

// GetByID retrieves a trader by ID. Returns ErrNotFound if not exists.
func (s *TraderStore) GetByID(ctx context.Context, traderID string) (*domain.TraderRecord, error) {
	row := s.pool.QueryRow(ctx, selectTraderQuery+` WHERE trader_id = $1`, traderID)

	t, err := scanTrader(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trader by id: %w", err)
	}
	return t, nil
}

// GetAll retrieves all traders, ordered by ID.
func (s *TraderStore) GetAll(ctx context.Context) ([]*domain.TraderRecord, error) {
	rows, err := s.pool.Query(ctx, selectTraderQuery+` ORDER BY trader_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all traders: %w", err)
	}
	defer rows.Close()

	var traders []*domain.TraderRecord
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trader row: %w", err)
		}
		traders = append(traders, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trader rows: %w", err)
	}

	return traders, nil
}

// SetActive flips the active flag. Returns ErrNotFound if not exists.
func (s *TraderStore) SetActive(ctx context.Context, traderID string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE traders SET active = $2, updated_at = NOW() WHERE trader_id = $1`,
		traderID, active,
	)
	if err != nil {
		return fmt.Errorf("set trader active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddPnL adds delta to the trader's cumulative realized PnL.
func (s *TraderStore) AddPnL(ctx context.Context, traderID string, delta float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE traders SET total_pnl = total_pnl + $2, updated_at = NOW() WHERE trader_id = $1`,
		traderID, delta,
	)
	if err != nil {
		return fmt.Errorf("add trader pnl: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const selectTraderQuery = `
	SELECT
		trader_id, symbol,
		strategy_type, macd_fast, macd_slow, macd_signal,
		atr_period, atr_multiplier, min_atr_ratio, max_loss,
		allocated_budget, investment_amount, total_pnl, active
	FROM traders
`

// rowScanner abstracts pgx.Row and pgx.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTrader scans a single row into a TraderRecord.
func scanTrader(row rowScanner) (*domain.TraderRecord, error) {
	var t domain.TraderRecord

	err := row.Scan(
		&t.ID, &t.Symbol,
		&t.Strategy.StrategyType, &t.Strategy.MACDFast, &t.Strategy.MACDSlow, &t.Strategy.MACDSignal,
		&t.Strategy.ATRPeriod, &t.Strategy.ATRMultiplier, &t.Strategy.MinATRRatio, &t.Strategy.MaxLoss,
		&t.AllocatedBudget, &t.InvestmentAmount, &t.TotalPnL, &t.Active,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
