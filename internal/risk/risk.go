// Package risk gates signals before they reach the exchange.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"binance-trade-engine/internal/alert"
	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

// defaultQuantityStep truncates order quantities when no per-symbol step
// size is configured.
const defaultQuantityStep = 0.001

// Verdict is the outcome of validating one signal. A rejection is an
// expected result, not an error.
type Verdict struct {
	Approved bool
	Quantity float64
	Reason   string
}

// Approve builds an approving verdict for quantity.
func Approve(quantity float64) Verdict {
	return Verdict{Approved: true, Quantity: quantity}
}

// Reject builds a rejecting verdict.
func Reject(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Manager validates signals against account state and per-trader limits.
// The kill switch is the only check with a side effect: tripping it
// deactivates the trader.
type Manager struct {
	traders      storage.TraderStore
	logs         storage.SystemLogStore
	notifier     alert.Notifier
	log          *logrus.Entry
	quantityStep float64
}

// Options configures a Manager.
type Options struct {
	Traders  storage.TraderStore
	Logs     storage.SystemLogStore
	Notifier alert.Notifier
	Log      *logrus.Entry

	// QuantityStep is the lot step orders are truncated to. Zero uses the
	// default.
	QuantityStep float64
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	step := opts.QuantityStep
	if step <= 0 {
		step = defaultQuantityStep
	}
	return &Manager{
		traders:      opts.Traders,
		logs:         opts.Logs,
		notifier:     opts.Notifier,
		log:          opts.Log,
		quantityStep: step,
	}
}

// Validate runs the ordered check chain for a signal. available is the
// account balance in quote currency; pos is the local open position, nil
// when flat.
func (m *Manager) Validate(ctx context.Context, trader *domain.TraderRecord, signal domain.Signal, pos *domain.Position, available float64) Verdict {
	if !trader.Active {
		return Reject("trader inactive")
	}

	switch signal.Direction {
	case domain.SignalExit:
		if pos.IsFlat() {
			return Reject("no position to exit")
		}
		// Exits are never blocked by limits; reducing exposure is always
		// allowed, kill switch included.
		return Approve(pos.Size)

	case domain.SignalEnterLong, domain.SignalEnterShort:
		return m.validateEntry(ctx, trader, signal, pos, available)

	default:
		return Reject("signal is not actionable")
	}
}

// validateEntry checks an entry signal: conflict, sizing, notional,
// margin, kill switch.
func (m *Manager) validateEntry(ctx context.Context, trader *domain.TraderRecord, signal domain.Signal, pos *domain.Position, available float64) Verdict {
	if !pos.IsFlat() {
		return Reject("position already open")
	}
	if signal.ReferencePrice <= 0 {
		return Reject("no reference price")
	}

	quantity := m.PositionSize(trader, available, signal.ReferencePrice)
	if quantity <= 0 {
		return Reject("available balance too small for minimum order")
	}

	limits := trader.Limits()
	notional := quantity * signal.ReferencePrice
	if notional > limits.MaxNotionalPerOrder {
		return Reject(fmt.Sprintf("notional %.2f exceeds per-order limit %.2f", notional, limits.MaxNotionalPerOrder))
	}
	if available < notional {
		return Reject(fmt.Sprintf("available %.2f below required margin %.2f", available, notional))
	}

	if limits.MaxLoss > 0 && trader.TotalPnL <= -limits.MaxLoss {
		m.tripKillSwitch(ctx, trader)
		return Reject("kill switch tripped")
	}

	return Approve(quantity)
}

// PositionSize computes an entry quantity from the investment amount and
// available balance, truncated to the lot step.
func (m *Manager) PositionSize(trader *domain.TraderRecord, available, price float64) float64 {
	if price <= 0 {
		return 0
	}
	budget := trader.InvestmentAmount
	if available < budget {
		budget = available
	}
	quantity := budget / price
	return math.Floor(quantity/m.quantityStep) * m.quantityStep
}

// tripKillSwitch deactivates the trader, records the event, and alerts.
// The open position, if any, stays open for the strategy to exit.
func (m *Manager) tripKillSwitch(ctx context.Context, trader *domain.TraderRecord) {
	m.log.WithFields(logrus.Fields{
		"trader_id": trader.ID,
		"total_pnl": trader.TotalPnL,
		"max_loss":  trader.Limits().MaxLoss,
	}).Error("kill switch tripped, deactivating trader")

	if err := m.traders.SetActive(ctx, trader.ID, false); err != nil {
		m.log.WithError(err).Error("deactivate trader after kill switch")
	}
	trader.Active = false

	logEntry := &domain.SystemLog{
		TraderID:  trader.ID,
		Level:     domain.LogLevelCritical,
		Component: domain.ComponentRisk,
		Event:     "kill_switch",
		Message: fmt.Sprintf("cumulative pnl %.2f breached max loss %.2f",
			trader.TotalPnL, trader.Limits().MaxLoss),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.logs.Insert(ctx, logEntry); err != nil {
		m.log.WithError(err).Error("persist kill switch event")
	}

	m.notifier.Notify(ctx, alert.Event{
		Severity: alert.SeverityCritical,
		TraderID: trader.ID,
		Symbol:   trader.Symbol,
		Title:    "kill switch tripped",
		Message:  logEntry.Message,
	})
}
