package domain

import "time"

// SignalDirection enumerates what a strategy wants done this cycle.
type SignalDirection string

const (
	SignalEnterLong  SignalDirection = "ENTER_LONG"
	SignalEnterShort SignalDirection = "ENTER_SHORT"
	SignalExit       SignalDirection = "EXIT"
	SignalHold       SignalDirection = "HOLD"
)

// Signal is the ephemeral output of one strategy evaluation. It is consumed
// immediately by risk validation and never persisted.
type Signal struct {
	Symbol         string
	Direction      SignalDirection
	ReferencePrice float64
	Reason         string
	GeneratedAt    time.Time
}

// IsEntry reports whether the signal opens a new position.
func (s Signal) IsEntry() bool {
	return s.Direction == SignalEnterLong || s.Direction == SignalEnterShort
}
