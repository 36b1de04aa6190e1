// Package indicator computes MACD and ATR series over minute bars and keeps
// the persisted snapshot history up to date.
package indicator

import (
	"math"

	"binance-trade-engine/internal/domain"
)

// emaSeries computes an exponential moving average seeded with the simple
// average of the first period values. It returns the series and the index
// of the first defined value; positions before it are zero.
func emaSeries(values []float64, period int) ([]float64, int) {
	n := len(values)
	out := make([]float64, n)
	if period <= 0 || n < period {
		return out, n
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < n; i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out, period - 1
}

// macdSeries computes the MACD line, signal line, and histogram for closes.
// It returns the index of the first bar where all three are defined.
func macdSeries(closes []float64, fast, slow, signal int) (line, sig, hist []float64, first int) {
	n := len(closes)
	line = make([]float64, n)
	sig = make([]float64, n)
	hist = make([]float64, n)

	emaFast, firstFast := emaSeries(closes, fast)
	emaSlow, firstSlow := emaSeries(closes, slow)
	firstLine := firstFast
	if firstSlow > firstLine {
		firstLine = firstSlow
	}
	if firstLine >= n {
		return line, sig, hist, n
	}

	for i := firstLine; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}

	// Signal line is an EMA over the defined portion of the MACD line.
	sigPart, firstSigPart := emaSeries(line[firstLine:], signal)
	first = firstLine + firstSigPart
	if first >= n {
		return line, sig, hist, n
	}

	for i := first; i < n; i++ {
		sig[i] = sigPart[i-firstLine]
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist, first
}

// atrSeries computes the Average True Range with Wilder smoothing. The
// returned index marks the first bar with a defined ATR.
func atrSeries(bars []*domain.Bar, period int) ([]float64, int) {
	n := len(bars)
	out := make([]float64, n)
	if period <= 0 || n < period+1 {
		return out, n
	}

	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		prevClose := bars[i-1].Close
		tr[i] = math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-prevClose), math.Abs(bars[i].Low-prevClose)))
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)

	for i := period + 1; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out, period
}

// Compute derives indicator snapshots for a contiguous ascending bar
// sequence. Bars without enough lookback get Sufficient false; their
// indicator fields are not meaningful and must not feed a strategy.
func Compute(bars []*domain.Bar, cfg domain.StrategyConfig) []*domain.IndicatorSnapshot {
	n := len(bars)
	if n == 0 {
		return nil
	}

	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}

	line, sig, hist, firstMACD := macdSeries(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	atr, firstATR := atrSeries(bars, cfg.ATRPeriod)

	snaps := make([]*domain.IndicatorSnapshot, n)
	for i, b := range bars {
		snaps[i] = &domain.IndicatorSnapshot{
			Symbol:        b.Symbol,
			OpenTime:      b.OpenTime,
			Close:         b.Close,
			MACDLine:      line[i],
			MACDSignal:    sig[i],
			MACDHistogram: hist[i],
			ATR:           atr[i],
			Sufficient:    i >= firstMACD && i >= firstATR,
		}
	}
	return snaps
}
