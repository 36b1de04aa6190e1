package domain

// Strategy type identifiers.
const (
	StrategyTypeMACDATR = "MACD_ATR"
)

// StrategyConfig carries the tunable parameters for one trader's strategy.
// Zero-valued optional fields fall back to the defaults the factory applies.
type StrategyConfig struct {
	StrategyType string

	// MACD periods.
	MACDFast   int
	MACDSlow   int
	MACDSignal int

	// ATR noise filter and stop sizing.
	ATRPeriod     int
	ATRMultiplier float64
	MinATRRatio   float64 // ATR/close ratio below which signals are noise

	// MaxLoss is the cumulative-loss kill-switch threshold in quote
	// currency. <=0 disables the kill switch.
	MaxLoss float64
}

// Default strategy parameters, matching the classic MACD(12,26,9) + ATR(14)
// configuration.
const (
	DefaultMACDFast      = 12
	DefaultMACDSlow      = 26
	DefaultMACDSignal    = 9
	DefaultATRPeriod     = 14
	DefaultATRMultiplier = 2.0
	DefaultMinATRRatio   = 0.003
)

// DefaultStrategyConfig returns a fully populated MACD+ATR configuration.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		StrategyType:  StrategyTypeMACDATR,
		MACDFast:      DefaultMACDFast,
		MACDSlow:      DefaultMACDSlow,
		MACDSignal:    DefaultMACDSignal,
		ATRPeriod:     DefaultATRPeriod,
		ATRMultiplier: DefaultATRMultiplier,
		MinATRRatio:   DefaultMinATRRatio,
	}
}

// MinBars returns the number of contiguous bars the strategy needs before
// its indicator values are trustworthy.
func (c StrategyConfig) MinBars() int {
	slow := c.MACDSlow
	if slow == 0 {
		slow = DefaultMACDSlow
	}
	sig := c.MACDSignal
	if sig == 0 {
		sig = DefaultMACDSignal
	}
	atr := c.ATRPeriod
	if atr == 0 {
		atr = DefaultATRPeriod
	}
	n := slow + sig
	if atr+1 > n {
		n = atr + 1
	}
	return n
}
