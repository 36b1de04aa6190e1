package domain

import "time"

// OrderSide enumerates order direction as sent to the exchange.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// TradeKind distinguishes fills that open exposure from fills that close it.
type TradeKind string

const (
	TradeEntry TradeKind = "ENTRY"
	TradeExit  TradeKind = "EXIT"
)

// Trade is the immutable, append-only record of a filled order.
// ExchangeOrderID is the idempotency key: a duplicate arrival must not
// create a second row.
type Trade struct {
	TraderID        string
	Symbol          string
	Side            OrderSide
	PositionSide    PositionSide
	Quantity        float64
	Price           float64
	Kind            TradeKind
	RealizedPnL     float64 // EXIT trades only
	ExchangeOrderID string
	ExecutedAt      time.Time
}

// Notional returns the trade value in quote currency.
func (t *Trade) Notional() float64 {
	return t.Quantity * t.Price
}
