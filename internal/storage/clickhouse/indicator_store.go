package clickhouse

import (
	"context"
	"fmt"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// IndicatorStore implements storage.IndicatorStore using ClickHouse.
type IndicatorStore struct {
	conn *Conn
}

// NewIndicatorStore creates a new IndicatorStore.
func NewIndicatorStore(conn *Conn) *IndicatorStore {
	return &IndicatorStore{conn: conn}
}

// Compile-time interface check.
var _ storage.IndicatorStore = (*IndicatorStore)(nil)

// InsertBulk adds snapshots, skipping ones already present for
// (symbol, open_time). ReplacingMergeTree handles the dedup.
func (s *IndicatorStore) InsertBulk(ctx context.Context, snaps []*domain.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	for _, snap := range snaps {
		if snap == nil || snap.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO indicators (
			symbol, open_time, close,
			macd_line, macd_signal, macd_histogram, atr, sufficient
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snaps {
		err = batch.Append(
			snap.Symbol, uint64(snap.OpenTime), snap.Close,
			snap.MACDLine, snap.MACDSignal, snap.MACDHistogram, snap.ATR,
			snap.Sufficient,
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

// GetRecent retrieves the most recent n sufficient snapshots for a symbol,
// ordered by open_time ASC.
func (s *IndicatorStore) GetRecent(ctx context.Context, symbol string, n int) ([]*domain.IndicatorSnapshot, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `
		SELECT symbol, open_time, close,
		       macd_line, macd_signal, macd_histogram, atr, sufficient
		FROM (
			SELECT symbol, open_time, close,
			       macd_line, macd_signal, macd_histogram, atr, sufficient
			FROM indicators FINAL
			WHERE symbol = ? AND sufficient
			ORDER BY open_time DESC
			LIMIT ?
		)
		ORDER BY open_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(n))
	if err != nil {
		return nil, fmt.Errorf("query recent indicators: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.IndicatorSnapshot
	for rows.Next() {
		var snap domain.IndicatorSnapshot
		var openTime uint64

		err := rows.Scan(
			&snap.Symbol, &openTime, &snap.Close,
			&snap.MACDLine, &snap.MACDSignal, &snap.MACDHistogram, &snap.ATR,
			&snap.Sufficient,
		)
		if err != nil {
			return nil, fmt.Errorf("scan indicator row: %w", err)
		}

		snap.OpenTime = int64(openTime)
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicator rows: %w", err)
	}

	return snaps, nil
}
