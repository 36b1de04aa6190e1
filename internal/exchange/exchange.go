// Package exchange defines the exchange access layer: market data, account
// state, and order placement.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"binance-trade-engine/internal/domain"
)

// OrderStatus is the terminal status reported for a placed order.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// OrderRequest describes a market order to place. ClientOrderID is the
// caller-supplied idempotency token; the exchange treats resubmission with
// the same token as the same order.
type OrderRequest struct {
	Symbol        string
	Side          domain.OrderSide
	Quantity      float64
	ReduceOnly    bool
	ClientOrderID string
}

// OrderResult is the exchange's answer to a placed order.
type OrderResult struct {
	ExchangeOrderID string
	Status          OrderStatus
	ExecutedQty     float64
	AvgPrice        float64
	ExecutedAt      int64
}

// AccountPosition is the exchange's view of a position. Size is zero when
// the account is flat on the symbol.
type AccountPosition struct {
	Symbol        string
	Side          domain.PositionSide
	Size          float64
	EntryPrice    float64
	UnrealizedPnL float64
}

// Client is the exchange access interface. All calls honor ctx deadlines.
type Client interface {
	// GetBars fetches closed bars for [start, end] inclusive,
	// ordered by open_time ASC.
	GetBars(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error)

	// GetPosition returns the exchange's view of the position for symbol.
	GetPosition(ctx context.Context, symbol string) (*AccountPosition, error)

	// GetBalance returns available account balance in quote currency.
	GetBalance(ctx context.Context) (float64, error)

	// PlaceOrder submits a market order. A *TransportError means the
	// order's fate is unknown; a *RejectionError means the exchange
	// definitively refused it.
	PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
}

// TransportError indicates a call failed in transit: timeout, connection
// reset, 5xx. The operation may or may not have taken effect on the
// exchange side.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("exchange transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError indicates the exchange received and definitively refused
// the request.
type RejectionError struct {
	Code   int
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("exchange rejected: code=%d reason=%s", e.Code, e.Reason)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejection reports whether err is (or wraps) a RejectionError.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}
