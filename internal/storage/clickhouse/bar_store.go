package clickhouse

import (
	"context"
	"fmt"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds bars, skipping ones already present for (symbol, open_time).
// The bars table uses ReplacingMergeTree keyed on (symbol, open_time), so
// re-inserting an existing bar is harmless; queries deduplicate with FINAL.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	for _, b := range bars {
		if b == nil || b.Symbol == "" || !domain.IsMinuteAligned(b.OpenTime) {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (symbol, open_time, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, uint64(b.OpenTime),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRecent retrieves the most recent n bars for a symbol, ordered by
// open_time ASC.
func (s *BarStore) GetRecent(ctx context.Context, symbol string, n int) ([]*domain.Bar, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `
		SELECT symbol, open_time, open, high, low, close, volume
		FROM (
			SELECT symbol, open_time, open, high, low, close, volume
			FROM bars FINAL
			WHERE symbol = ?
			ORDER BY open_time DESC
			LIMIT ?
		)
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(n))
	if err != nil {
		return nil, fmt.Errorf("query recent bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetRange retrieves bars within [start, end] inclusive, ordered by
// open_time ASC.
func (s *BarStore) GetRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, open_time, open, high, low, close, volume
		FROM bars FINAL
		WHERE symbol = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query bar range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		var openTime uint64

		err := rows.Scan(
			&b.Symbol, &openTime,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.OpenTime = int64(openTime)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
