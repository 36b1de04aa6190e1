// Package trader runs the per-symbol decision cycle: history, indicators,
// signal, risk, execution, reconciliation.
package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"binance-trade-engine/internal/alert"
	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/exchange"
	"binance-trade-engine/internal/execution"
	"binance-trade-engine/internal/indicator"
	"binance-trade-engine/internal/observability"
	"binance-trade-engine/internal/reconcile"
	"binance-trade-engine/internal/risk"
	"binance-trade-engine/internal/storage"
	"binance-trade-engine/internal/strategy"
)

// ErrNotHalted is returned by ClearHalt when the trader is not halted.
var ErrNotHalted = errors.New("trader is not halted")

// Trader drives one symbol through the tick cycle. States:
// IDLE -> EVALUATING -> ORDER_PENDING -> RECONCILING -> IDLE, with HALTED
// reachable from any state and left only via ClearHalt.
type Trader struct {
	record *domain.TraderRecord
	strat  strategy.Strategy

	pipeline   *indicator.Pipeline
	risk       *risk.Manager
	execution  *execution.Coordinator
	reconciler *reconcile.Manager
	client     exchange.Client
	traders    storage.TraderStore
	positions  storage.PositionStore
	logs       storage.SystemLogStore
	notifier   alert.Notifier
	log        *logrus.Entry

	// tickMu enforces single-flight: a tick that arrives while the
	// previous cycle is still running is skipped, never queued.
	tickMu sync.Mutex

	stateMu sync.Mutex
	state   domain.TraderState
}

// Options configures a Trader.
type Options struct {
	Record *domain.TraderRecord

	// Strategy overrides the one built from Record.Strategy when set.
	Strategy strategy.Strategy

	Pipeline   *indicator.Pipeline
	Risk       *risk.Manager
	Execution  *execution.Coordinator
	Reconciler *reconcile.Manager
	Client     exchange.Client
	Traders    storage.TraderStore
	Positions  storage.PositionStore
	Logs       storage.SystemLogStore
	Notifier   alert.Notifier
	Log        *logrus.Entry
}

// New creates a Trader, building its strategy from the record's config.
func New(opts Options) (*Trader, error) {
	strat := opts.Strategy
	if strat == nil {
		var err error
		strat, err = strategy.FromConfig(opts.Record.Strategy)
		if err != nil {
			return nil, fmt.Errorf("build strategy for %s: %w", opts.Record.ID, err)
		}
	}

	return &Trader{
		record:     opts.Record,
		strat:      strat,
		pipeline:   opts.Pipeline,
		risk:       opts.Risk,
		execution:  opts.Execution,
		reconciler: opts.Reconciler,
		client:     opts.Client,
		traders:    opts.Traders,
		positions:  opts.Positions,
		logs:       opts.Logs,
		notifier:   opts.Notifier,
		log:        opts.Log.WithFields(logrus.Fields{"trader_id": opts.Record.ID, "symbol": opts.Record.Symbol}),
		state:      domain.TraderIdle,
	}, nil
}

// ID returns the trader's identifier.
func (t *Trader) ID() string { return t.record.ID }

// Symbol returns the trader's symbol.
func (t *Trader) Symbol() string { return t.record.Symbol }

// State returns the current lifecycle state.
func (t *Trader) State() domain.TraderState {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

func (t *Trader) setState(s domain.TraderState) {
	t.stateMu.Lock()
	t.state = s
	t.stateMu.Unlock()
}

// Tick runs one decision cycle for the minute ending before asOf. A tick
// that overlaps a still-running cycle is skipped. A panic inside the cycle
// is recovered and halts the trader; other traders are unaffected.
func (t *Trader) Tick(ctx context.Context, asOf int64) error {
	if !t.tickMu.TryLock() {
		t.log.Debug("previous cycle still running, tick skipped")
		return nil
	}
	defer t.tickMu.Unlock()

	if t.State() == domain.TraderHalted {
		return nil
	}

	start := time.Now()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			observability.RecordCyclePanic()
			t.halt(ctx, fmt.Sprintf("cycle panic: %v", r))
		}
		observability.RecordTickCycle(t.record.ID, result, time.Since(start).Seconds())
		if t.State() != domain.TraderHalted {
			t.setState(domain.TraderIdle)
		}
	}()

	t.setState(domain.TraderEvaluating)

	// Reload so kill-switch and PnL changes from other components are seen.
	rec, err := t.traders.GetByID(ctx, t.record.ID)
	if err != nil {
		result = "error"
		return fmt.Errorf("load trader: %w", err)
	}
	t.record = rec

	current, previous, err := t.pipeline.ComputeAndStore(ctx, rec.Symbol, rec.Strategy, asOf)
	if errors.Is(err, indicator.ErrInsufficientHistory) {
		observability.RecordInsufficientHistory()
		t.log.WithError(err).Info("insufficient history, skipping cycle")
		result = "insufficient_history"
		return nil
	}
	if err != nil {
		result = "error"
		return fmt.Errorf("compute indicators: %w", err)
	}

	pos, err := t.positions.GetOpen(ctx, rec.ID, rec.Symbol)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		result = "error"
		return fmt.Errorf("load position: %w", err)
	}

	signal := t.strat.Evaluate(current, previous, pos)
	observability.RecordSignal(rec.Symbol, string(signal.Direction))

	if signal.Direction == domain.SignalHold {
		result = "hold"
		return t.reconcileStep(ctx, rec, &result)
	}

	t.log.WithFields(logrus.Fields{
		"direction": signal.Direction,
		"reason":    signal.Reason,
		"price":     signal.ReferencePrice,
	}).Info("signal generated")

	balance, err := t.client.GetBalance(ctx)
	if err != nil {
		result = "error"
		return fmt.Errorf("get balance: %w", err)
	}

	wasActive := rec.Active
	verdict := t.risk.Validate(ctx, rec, signal, pos, balance)
	if !verdict.Approved {
		observability.RecordRiskRejection(rec.ID, verdict.Reason)
		t.log.WithField("reason", verdict.Reason).Info("signal rejected")
		if wasActive && !rec.Active {
			// The kill switch tripped inside validation; risk already
			// persisted the deactivation and alerted.
			t.setState(domain.TraderHalted)
			result = "kill_switch"
			return nil
		}
		result = "rejected"
		return t.reconcileStep(ctx, rec, &result)
	}

	t.setState(domain.TraderOrderPending)
	outcome := t.execution.Submit(ctx, orderRequest(rec, signal, pos, verdict.Quantity))
	observability.RecordOrderOutcome(rec.Symbol, string(outcome.Status))

	switch outcome.Status {
	case execution.OutcomeFilled:
		if err := t.applyFill(ctx, rec, signal, outcome.Trade); err != nil {
			result = "error"
			return err
		}
		result = "filled"
	case execution.OutcomeRejected:
		t.log.WithField("reason", outcome.Reason).Warn("order rejected by exchange")
		result = "order_rejected"
	case execution.OutcomeUnknown:
		// Reconciliation below is what resolves the order's fate.
		result = "unknown"
	}

	return t.reconcileStep(ctx, rec, &result)
}

// reconcileStep runs the mandatory end-of-cycle reconciliation. A failed
// reconciliation leaves the trader halted, deactivated, and alerted.
func (t *Trader) reconcileStep(ctx context.Context, rec *domain.TraderRecord, result *string) error {
	t.setState(domain.TraderReconciling)

	res, err := t.reconciler.Reconcile(ctx, rec)
	observability.RecordReconcileResult(rec.ID, string(res.Status))
	if err != nil {
		if errors.Is(err, reconcile.ErrUnreachable) {
			// The reconciler already deactivated the trader and alerted.
			t.setState(domain.TraderHalted)
		} else {
			// Storage failures inside reconciliation halt here so the
			// deactivation, log entry, and alert are never skipped.
			t.halt(ctx, fmt.Sprintf("reconciliation failed: %v", err))
		}
		*result = "halted"
		return err
	}
	return nil
}

// orderRequest translates an approved signal into an execution request.
func orderRequest(rec *domain.TraderRecord, signal domain.Signal, pos *domain.Position, quantity float64) execution.OrderRequest {
	req := execution.OrderRequest{
		TraderID: rec.ID,
		Symbol:   rec.Symbol,
		Quantity: quantity,
	}

	switch signal.Direction {
	case domain.SignalEnterLong:
		req.Side = domain.OrderBuy
		req.PositionSide = domain.PositionLong
		req.Kind = domain.TradeEntry
	case domain.SignalEnterShort:
		req.Side = domain.OrderSell
		req.PositionSide = domain.PositionShort
		req.Kind = domain.TradeEntry
	case domain.SignalExit:
		req.Side = domain.OrderSell
		if pos.Side == domain.PositionShort {
			req.Side = domain.OrderBuy
		}
		req.PositionSide = pos.Side
		req.Kind = domain.TradeExit
		req.EntryPrice = pos.EntryPrice
	}
	return req
}

// applyFill updates the local position and PnL after a confirmed fill.
func (t *Trader) applyFill(ctx context.Context, rec *domain.TraderRecord, signal domain.Signal, trade *domain.Trade) error {
	switch trade.Kind {
	case domain.TradeEntry:
		side := domain.PositionLong
		if signal.Direction == domain.SignalEnterShort {
			side = domain.PositionShort
		}
		pos := &domain.Position{
			TraderID:   rec.ID,
			Symbol:     rec.Symbol,
			Side:       side,
			Size:       trade.Quantity,
			EntryPrice: trade.Price,
			EntryTime:  trade.ExecutedAt,
			Open:       true,
		}
		if err := t.positions.Upsert(ctx, pos); err != nil {
			return fmt.Errorf("record opened position: %w", err)
		}
		t.log.WithFields(logrus.Fields{
			"side":  side,
			"size":  trade.Quantity,
			"price": trade.Price,
		}).Info("position opened")

	case domain.TradeExit:
		if err := t.positions.Close(ctx, rec.ID, rec.Symbol); err != nil {
			return fmt.Errorf("close position record: %w", err)
		}
		if err := t.traders.AddPnL(ctx, rec.ID, trade.RealizedPnL); err != nil {
			return fmt.Errorf("apply realized pnl: %w", err)
		}
		rec.TotalPnL += trade.RealizedPnL
		observability.SetRealizedPnL(rec.ID, rec.TotalPnL)
		t.log.WithFields(logrus.Fields{
			"realized_pnl": trade.RealizedPnL,
			"total_pnl":    rec.TotalPnL,
		}).Info("position closed")
	}
	return nil
}

// halt moves the trader to HALTED, deactivates it, and alerts. Used for
// failures discovered by the trader itself; risk and reconciliation halts
// persist their own events before the state transition.
func (t *Trader) halt(ctx context.Context, reason string) {
	t.setState(domain.TraderHalted)
	t.log.WithField("reason", reason).Error("trader halted")

	if err := t.traders.SetActive(ctx, t.record.ID, false); err != nil {
		t.log.WithError(err).Error("deactivate halted trader")
	}
	t.record.Active = false

	entry := &domain.SystemLog{
		TraderID:  t.record.ID,
		Level:     domain.LogLevelCritical,
		Component: domain.ComponentTrader,
		Event:     "trader_halted",
		Message:   reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.logs.Insert(ctx, entry); err != nil {
		t.log.WithError(err).Error("persist halt event")
	}

	t.notifier.Notify(ctx, alert.Event{
		Severity: alert.SeverityCritical,
		TraderID: t.record.ID,
		Symbol:   t.record.Symbol,
		Title:    "trader halted",
		Message:  reason,
	})
}

// ClearHalt is the manual operator action that reactivates a halted
// trader. There is no automatic recovery from HALTED.
func (t *Trader) ClearHalt(ctx context.Context) error {
	if t.State() != domain.TraderHalted {
		return ErrNotHalted
	}

	if err := t.traders.SetActive(ctx, t.record.ID, true); err != nil {
		return fmt.Errorf("reactivate trader: %w", err)
	}
	t.record.Active = true
	t.setState(domain.TraderIdle)

	entry := &domain.SystemLog{
		TraderID:  t.record.ID,
		Level:     domain.LogLevelInfo,
		Component: domain.ComponentTrader,
		Event:     "halt_cleared",
		Message:   "halt cleared by operator",
		CreatedAt: time.Now().UTC(),
	}
	if err := t.logs.Insert(ctx, entry); err != nil {
		t.log.WithError(err).Error("persist halt clear")
	}

	t.log.Info("halt cleared, trader idle")
	return nil
}
