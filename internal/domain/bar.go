// Package domain defines the core entities shared across the engine.
package domain

import "time"

// BarInterval is the bar aggregation interval the engine trades on.
const BarInterval = time.Minute

// BarIntervalMs is BarInterval in milliseconds, the unit bar timestamps use.
const BarIntervalMs = int64(60_000)

// Bar is one interval's OHLCV for a symbol. Immutable once persisted.
// OpenTime is minute-aligned epoch milliseconds and unique per symbol.
type Bar struct {
	Symbol   string
	OpenTime int64 // minute-aligned ms
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// AlignToMinute truncates an epoch-ms timestamp to its minute boundary.
func AlignToMinute(ms int64) int64 {
	return ms - ms%BarIntervalMs
}

// IsMinuteAligned reports whether ms sits exactly on a minute boundary.
func IsMinuteAligned(ms int64) bool {
	return ms%BarIntervalMs == 0
}
