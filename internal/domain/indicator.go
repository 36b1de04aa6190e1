package domain

// IndicatorSnapshot holds the derived technical values attached 1:1 to a Bar.
// Sufficient is false until the bar's full lookback window exists; an
// insufficient snapshot carries no trustworthy values and must not feed a
// strategy.
type IndicatorSnapshot struct {
	Symbol   string
	OpenTime int64 // matches the underlying Bar.OpenTime
	Close    float64

	MACDLine      float64
	MACDSignal    float64
	MACDHistogram float64
	ATR           float64

	Sufficient bool
}
