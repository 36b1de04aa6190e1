package domain

import "time"

// PositionSide enumerates position direction.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionFlat  PositionSide = "FLAT"
)

// Position is the locally cached view of a trader's exposure on one symbol.
// The exchange is authoritative; this record is reconciled against it and
// never assumed correct. At most one open position exists per
// (trader, symbol).
type Position struct {
	TraderID      string
	Symbol        string
	Side          PositionSide
	Size          float64
	EntryPrice    float64
	EntryTime     time.Time
	UnrealizedPnL float64
	Open          bool
}

// IsFlat reports whether the position carries no exposure.
func (p *Position) IsFlat() bool {
	return p == nil || !p.Open || p.Side == PositionFlat || p.Size == 0
}
