// Package strategy turns indicator snapshots into trading signals.
package strategy

import (
	"binance-trade-engine/internal/domain"
)

// Strategy produces a signal from the two most recent indicator snapshots
// and the currently held position. Implementations are pure and stateless.
type Strategy interface {
	// Evaluate returns exactly one signal per invocation.
	Evaluate(current, previous *domain.IndicatorSnapshot, pos *domain.Position) domain.Signal

	// ID returns strategy identifier (includes parameters).
	ID() string
}
