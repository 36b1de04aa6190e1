package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-trade-engine/internal/domain"
)

func TestEMASeries(t *testing.T) {
	series, first := emaSeries([]float64{1, 2, 3, 4, 5}, 3)

	require.Equal(t, 2, first)
	assert.InDelta(t, 2.0, series[2], 1e-9) // SMA seed
	assert.InDelta(t, 3.0, series[3], 1e-9)
	assert.InDelta(t, 4.0, series[4], 1e-9)
}

func TestEMASeriesTooShort(t *testing.T) {
	_, first := emaSeries([]float64{1, 2}, 3)
	assert.Equal(t, 2, first, "first defined index past end means undefined")
}

func TestMACDSeriesFlatPrices(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}

	line, sig, hist, first := macdSeries(closes, 12, 26, 9)

	require.Less(t, first, len(closes))
	for i := first; i < len(closes); i++ {
		assert.InDelta(t, 0, line[i], 1e-9)
		assert.InDelta(t, 0, sig[i], 1e-9)
		assert.InDelta(t, 0, hist[i], 1e-9)
	}
}

func TestATRSeriesConstantRange(t *testing.T) {
	bars := make([]*domain.Bar, 30)
	for i := range bars {
		bars[i] = &domain.Bar{
			Symbol:   "BTCUSDT",
			OpenTime: int64(i) * domain.BarIntervalMs,
			Open:     100, High: 100.5, Low: 99.5, Close: 100,
		}
	}

	atr, first := atrSeries(bars, 14)

	require.Equal(t, 14, first)
	for i := first; i < len(bars); i++ {
		assert.InDelta(t, 1.0, atr[i], 1e-9)
	}
}

func TestComputeSufficiency(t *testing.T) {
	cfg := domain.DefaultStrategyConfig()
	n := cfg.MinBars() + 5

	bars := make([]*domain.Bar, n)
	for i := range bars {
		bars[i] = &domain.Bar{
			Symbol:   "BTCUSDT",
			OpenTime: int64(i) * domain.BarIntervalMs,
			Open:     100, High: 101, Low: 99, Close: 100 + float64(i%3),
			Volume: 10,
		}
	}

	snaps := Compute(bars, cfg)
	require.Len(t, snaps, n)

	// A contiguous window at least MinBars long always ends sufficient.
	assert.True(t, snaps[n-1].Sufficient)
	assert.True(t, snaps[n-2].Sufficient)

	// Early snapshots lack lookback.
	assert.False(t, snaps[0].Sufficient)
	assert.False(t, snaps[cfg.ATRPeriod-1].Sufficient)
}

func TestComputeEmpty(t *testing.T) {
	assert.Nil(t, Compute(nil, domain.DefaultStrategyConfig()))
}
