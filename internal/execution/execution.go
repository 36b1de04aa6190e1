// Package execution submits approved orders exactly once and classifies
// what the exchange did with them.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/exchange"
	"binance-trade-engine/internal/observability"
	"binance-trade-engine/internal/storage"
)

// OutcomeStatus classifies a submit.
type OutcomeStatus string

const (
	// OutcomeFilled means the order executed and the trade is persisted.
	OutcomeFilled OutcomeStatus = "FILLED"
	// OutcomeRejected means the exchange definitively refused the order.
	OutcomeRejected OutcomeStatus = "REJECTED"
	// OutcomeUnknown means transport failed twice; the order may or may
	// not exist on the exchange and the caller must reconcile.
	OutcomeUnknown OutcomeStatus = "UNKNOWN"
)

// Outcome is the result of one Submit call.
type Outcome struct {
	Status OutcomeStatus
	Token  string
	Trade  *domain.Trade // set when Filled
	Reason string        // set when Rejected
}

// OrderRequest describes one approved order. Token is the idempotency key;
// when empty, Submit generates one.
type OrderRequest struct {
	TraderID     string
	Symbol       string
	Side         domain.OrderSide
	PositionSide domain.PositionSide
	Quantity     float64
	Kind         domain.TradeKind
	// EntryPrice of the position being closed; used to realize PnL on
	// EXIT fills.
	EntryPrice float64
	Token      string
}

// Coordinator submits orders with at-most-once semantics. The idempotency
// token travels to the exchange as the client order ID, so a lost response
// can be retried without double-executing.
type Coordinator struct {
	client exchange.Client
	trades storage.TradeStore
	log    *logrus.Entry

	mu   sync.Mutex
	seen map[string]Outcome // token -> terminal outcome
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(client exchange.Client, trades storage.TradeStore, log *logrus.Entry) *Coordinator {
	return &Coordinator{
		client: client,
		trades: trades,
		log:    log,
		seen:   make(map[string]Outcome),
	}
}

// Submit places the order. Transient transport failure is retried once
// with the same token; a second failure yields Unknown. A token with a
// recorded terminal outcome short-circuits without touching the exchange.
func (c *Coordinator) Submit(ctx context.Context, req OrderRequest) Outcome {
	if req.Token == "" {
		req.Token = uuid.NewString()
	}

	c.mu.Lock()
	if outcome, ok := c.seen[req.Token]; ok {
		c.mu.Unlock()
		return outcome
	}
	c.mu.Unlock()

	result, err := c.place(ctx, req)
	if err != nil {
		var rejection *exchange.RejectionError
		if errors.As(err, &rejection) {
			return c.record(Outcome{
				Status: OutcomeRejected,
				Token:  req.Token,
				Reason: rejection.Reason,
			})
		}

		// Transport failed twice. The order's fate is unknown; the caller
		// must reconcile before this trader acts again.
		c.log.WithError(err).WithFields(logrus.Fields{
			"trader_id": req.TraderID,
			"token":     req.Token,
		}).Warn("order fate unknown after retry")
		return Outcome{Status: OutcomeUnknown, Token: req.Token}
	}

	if result.Status != exchange.OrderStatusFilled {
		return c.record(Outcome{
			Status: OutcomeRejected,
			Token:  req.Token,
			Reason: fmt.Sprintf("order status %s", result.Status),
		})
	}

	trade, err := c.persistFill(ctx, req, result)
	if err != nil {
		// The fill happened; losing the write must not look like a failed
		// order. Reconciliation repairs the local record.
		c.log.WithError(err).WithField("token", req.Token).Error("persist fill")
		return Outcome{Status: OutcomeUnknown, Token: req.Token}
	}

	return c.record(Outcome{Status: OutcomeFilled, Token: req.Token, Trade: trade})
}

// place calls the exchange, retrying exactly once on transport failure
// with the same idempotency token.
func (c *Coordinator) place(ctx context.Context, req OrderRequest) (*exchange.OrderResult, error) {
	order := &exchange.OrderRequest{
		Symbol:        req.Symbol,
		Side:          req.Side,
		Quantity:      req.Quantity,
		ReduceOnly:    req.Kind == domain.TradeExit,
		ClientOrderID: req.Token,
	}

	result, err := c.client.PlaceOrder(ctx, order)
	if err == nil || !exchange.IsTransport(err) {
		return result, err
	}

	c.log.WithError(err).WithField("token", req.Token).Warn("order submit transport failure, retrying once")
	observability.RecordOrderRetry()
	return c.client.PlaceOrder(ctx, order)
}

// persistFill writes the trade ledger row. Insert is idempotent on
// exchange_order_id: a duplicate returns the stored row.
func (c *Coordinator) persistFill(ctx context.Context, req OrderRequest, result *exchange.OrderResult) (*domain.Trade, error) {
	trade := &domain.Trade{
		TraderID:        req.TraderID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		PositionSide:    req.PositionSide,
		Quantity:        result.ExecutedQty,
		Price:           result.AvgPrice,
		Kind:            req.Kind,
		ExchangeOrderID: result.ExchangeOrderID,
		ExecutedAt:      time.UnixMilli(result.ExecutedAt).UTC(),
	}
	if req.Kind == domain.TradeExit {
		trade.RealizedPnL = realizePnL(req.PositionSide, req.EntryPrice, result.AvgPrice, result.ExecutedQty)
	}

	err := c.trades.Insert(ctx, trade)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return c.trades.GetByOrderID(ctx, result.ExchangeOrderID)
	}
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// record stores a terminal outcome for token dedup and returns it.
func (c *Coordinator) record(outcome Outcome) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[outcome.Token] = outcome
	return outcome
}

// realizePnL computes the realized profit for closing a position.
func realizePnL(side domain.PositionSide, entry, exit, quantity float64) float64 {
	switch side {
	case domain.PositionLong:
		return (exit - entry) * quantity
	case domain.PositionShort:
		return (entry - exit) * quantity
	default:
		return 0
	}
}
