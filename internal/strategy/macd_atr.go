package strategy

import (
	"fmt"
	"time"

	"binance-trade-engine/internal/domain"
)

// crossover classification
type crossover int

const (
	crossNone crossover = iota
	crossGolden
	crossDead
)

// MACDATRStrategy trades MACD line/signal crossovers, filtered by an ATR
// noise floor, with an ATR-multiple stop on open positions.
type MACDATRStrategy struct {
	cfg domain.StrategyConfig
}

// NewMACDATRStrategy creates the strategy from a validated config.
func NewMACDATRStrategy(cfg domain.StrategyConfig) *MACDATRStrategy {
	return &MACDATRStrategy{cfg: cfg}
}

// Compile-time interface check.
var _ Strategy = (*MACDATRStrategy)(nil)

// ID returns strategy identifier (includes parameters).
func (s *MACDATRStrategy) ID() string {
	return fmt.Sprintf("macd_atr_%d_%d_%d_atr%d_x%.2f",
		s.cfg.MACDFast, s.cfg.MACDSlow, s.cfg.MACDSignal,
		s.cfg.ATRPeriod, s.cfg.ATRMultiplier)
}

// Evaluate produces exactly one signal. Exit conditions are checked before
// entry conditions, so a bar satisfying both resolves to EXIT.
func (s *MACDATRStrategy) Evaluate(current, previous *domain.IndicatorSnapshot, pos *domain.Position) domain.Signal {
	if current == nil || previous == nil || !current.Sufficient || !previous.Sufficient {
		return s.hold(current, "insufficient indicator history")
	}

	// Noise floor: a market moving less than MinATRRatio of price is not
	// worth acting on.
	if current.Close <= 0 || current.ATR/current.Close < s.cfg.MinATRRatio {
		return s.hold(current, "atr below noise floor")
	}

	cross := s.crossover(current, previous)

	if !pos.IsFlat() {
		if exit, ok := s.checkExit(current, cross, pos); ok {
			return exit
		}
		return s.hold(current, "position held, no exit condition")
	}

	switch cross {
	case crossGolden:
		return s.signal(current, domain.SignalEnterLong, "macd golden cross")
	case crossDead:
		return s.signal(current, domain.SignalEnterShort, "macd dead cross")
	}
	return s.hold(current, "no crossover")
}

// crossover detects a line/signal cross between the previous and current bar.
func (s *MACDATRStrategy) crossover(current, previous *domain.IndicatorSnapshot) crossover {
	switch {
	case previous.MACDLine <= previous.MACDSignal && current.MACDLine > current.MACDSignal:
		return crossGolden
	case previous.MACDLine >= previous.MACDSignal && current.MACDLine < current.MACDSignal:
		return crossDead
	default:
		return crossNone
	}
}

// checkExit evaluates the ATR stop and the opposing-crossover exit for an
// open position.
func (s *MACDATRStrategy) checkExit(current *domain.IndicatorSnapshot, cross crossover, pos *domain.Position) (domain.Signal, bool) {
	stop := s.cfg.ATRMultiplier * current.ATR

	switch pos.Side {
	case domain.PositionLong:
		if current.Close <= pos.EntryPrice-stop {
			return s.signal(current, domain.SignalExit, "atr stop hit"), true
		}
		if cross == crossDead {
			return s.signal(current, domain.SignalExit, "macd dead cross against long"), true
		}
	case domain.PositionShort:
		if current.Close >= pos.EntryPrice+stop {
			return s.signal(current, domain.SignalExit, "atr stop hit"), true
		}
		if cross == crossGolden {
			return s.signal(current, domain.SignalExit, "macd golden cross against short"), true
		}
	}
	return domain.Signal{}, false
}

func (s *MACDATRStrategy) signal(snap *domain.IndicatorSnapshot, dir domain.SignalDirection, reason string) domain.Signal {
	return domain.Signal{
		Symbol:         snap.Symbol,
		Direction:      dir,
		ReferencePrice: snap.Close,
		Reason:         reason,
		GeneratedAt:    time.Now().UTC(),
	}
}

func (s *MACDATRStrategy) hold(snap *domain.IndicatorSnapshot, reason string) domain.Signal {
	sig := domain.Signal{
		Direction:   domain.SignalHold,
		Reason:      reason,
		GeneratedAt: time.Now().UTC(),
	}
	if snap != nil {
		sig.Symbol = snap.Symbol
		sig.ReferencePrice = snap.Close
	}
	return sig
}
