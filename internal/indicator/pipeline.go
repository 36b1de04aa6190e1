package indicator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/exchange"
	"binance-trade-engine/internal/observability"
	"binance-trade-engine/internal/storage"
)

// ErrInsufficientHistory means the bar window still has gaps after the
// backfill attempt and no trading decision can be made this cycle.
var ErrInsufficientHistory = errors.New("insufficient bar history")

// Pipeline keeps bar history contiguous and derives indicator snapshots
// from it.
type Pipeline struct {
	bars       storage.BarStore
	indicators storage.IndicatorStore
	client     exchange.Client
	log        *logrus.Entry
}

// NewPipeline creates a Pipeline.
func NewPipeline(bars storage.BarStore, indicators storage.IndicatorStore, client exchange.Client, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		bars:       bars,
		indicators: indicators,
		client:     client,
		log:        log,
	}
}

// EnsureHistory guarantees a contiguous window of the trailing lookback
// bars ending at the last closed minute before asOf. When the window has
// gaps it backfills from the exchange exactly once; a window that is still
// incomplete afterwards yields ErrInsufficientHistory.
func (p *Pipeline) EnsureHistory(ctx context.Context, symbol string, cfg domain.StrategyConfig, asOf int64) ([]*domain.Bar, error) {
	// One extra bar so the strategy always has a previous snapshot to
	// compare against.
	want := cfg.MinBars() + 1
	end := domain.AlignToMinute(asOf) - domain.BarIntervalMs
	start := end - int64(want-1)*domain.BarIntervalMs

	window, err := p.bars.GetRange(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bar window: %w", err)
	}

	missing := missingOpenTimes(start, end, window)
	if len(missing) == 0 {
		return window, nil
	}

	p.log.WithFields(logrus.Fields{
		"symbol":  symbol,
		"missing": len(missing),
	}).Info("bar window has gaps, backfilling")

	fetched, err := p.client.GetBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("backfill bars: %w", err)
	}
	if err := p.bars.InsertBulk(ctx, fetched); err != nil {
		return nil, fmt.Errorf("store backfilled bars: %w", err)
	}
	observability.RecordBarsBackfilled(len(fetched))

	window, err = p.bars.GetRange(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reload bar window: %w", err)
	}

	if missing := missingOpenTimes(start, end, window); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s still missing %d of %d bars after backfill",
			ErrInsufficientHistory, symbol, len(missing), want)
	}
	return window, nil
}

// ComputeAndStore refreshes the bar window, derives snapshots, persists
// them, and returns the current and previous sufficient snapshots.
func (p *Pipeline) ComputeAndStore(ctx context.Context, symbol string, cfg domain.StrategyConfig, asOf int64) (current, previous *domain.IndicatorSnapshot, err error) {
	window, err := p.EnsureHistory(ctx, symbol, cfg, asOf)
	if err != nil {
		return nil, nil, err
	}

	snaps := Compute(window, cfg)
	if err := p.indicators.InsertBulk(ctx, snaps); err != nil {
		return nil, nil, fmt.Errorf("store indicator snapshots: %w", err)
	}

	var sufficient []*domain.IndicatorSnapshot
	for _, s := range snaps {
		if s.Sufficient {
			sufficient = append(sufficient, s)
		}
	}
	if len(sufficient) < 2 {
		return nil, nil, fmt.Errorf("%w: %s has %d sufficient snapshots, need 2",
			ErrInsufficientHistory, symbol, len(sufficient))
	}

	return sufficient[len(sufficient)-1], sufficient[len(sufficient)-2], nil
}

// missingOpenTimes lists minute open times absent from the window.
func missingOpenTimes(start, end int64, window []*domain.Bar) []int64 {
	present := make(map[int64]struct{}, len(window))
	for _, b := range window {
		present[b.OpenTime] = struct{}{}
	}

	var missing []int64
	for t := start; t <= end; t += domain.BarIntervalMs {
		if _, ok := present[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}
