package strategy

import (
	"errors"

	"binance-trade-engine/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrInvalidMACDPeriods  = errors.New("MACD_ATR requires 0 < fast < slow and signal > 0")
	ErrInvalidATRPeriod    = errors.New("MACD_ATR requires ATRPeriod > 0")
	ErrInvalidATRFilter    = errors.New("MACD_ATR requires ATRMultiplier > 0 and MinATRRatio >= 0")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Zero-valued optional parameters fall back to defaults; explicit invalid
// values are rejected.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeMACDATR:
		return fromMACDATRConfig(cfg)
	default:
		return nil, ErrUnknownStrategyType
	}
}

// fromMACDATRConfig creates MACDATRStrategy from config.
func fromMACDATRConfig(cfg domain.StrategyConfig) (*MACDATRStrategy, error) {
	applyDefaults(&cfg)

	if cfg.MACDFast <= 0 || cfg.MACDSlow <= cfg.MACDFast || cfg.MACDSignal <= 0 {
		return nil, ErrInvalidMACDPeriods
	}
	if cfg.ATRPeriod <= 0 {
		return nil, ErrInvalidATRPeriod
	}
	if cfg.ATRMultiplier <= 0 || cfg.MinATRRatio < 0 {
		return nil, ErrInvalidATRFilter
	}

	return NewMACDATRStrategy(cfg), nil
}

func applyDefaults(cfg *domain.StrategyConfig) {
	if cfg.MACDFast == 0 {
		cfg.MACDFast = domain.DefaultMACDFast
	}
	if cfg.MACDSlow == 0 {
		cfg.MACDSlow = domain.DefaultMACDSlow
	}
	if cfg.MACDSignal == 0 {
		cfg.MACDSignal = domain.DefaultMACDSignal
	}
	if cfg.ATRPeriod == 0 {
		cfg.ATRPeriod = domain.DefaultATRPeriod
	}
	if cfg.ATRMultiplier == 0 {
		cfg.ATRMultiplier = domain.DefaultATRMultiplier
	}
	if cfg.MinATRRatio == 0 {
		cfg.MinATRRatio = domain.DefaultMinATRRatio
	}
}
