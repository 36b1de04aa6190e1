// Package reconcile compares local position records against the exchange
// and rewrites local state when they disagree. The exchange is always the
// source of truth.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"binance-trade-engine/internal/alert"
	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/exchange"
	"binance-trade-engine/internal/storage"
)

// ErrUnreachable means the exchange could not be queried within the retry
// budget. The trader must halt rather than trade on stale local state.
var ErrUnreachable = errors.New("exchange unreachable during reconciliation")

// sizeEpsilon tolerates float noise when comparing position sizes.
const sizeEpsilon = 1e-9

// defaultMaxAttempts is the position fetch retry budget.
const defaultMaxAttempts = 3

// Status of one reconciliation pass.
type Status string

const (
	// StatusInSync means local state already matched the exchange.
	StatusInSync Status = "IN_SYNC"
	// StatusCorrected means local state was rewritten to exchange truth.
	StatusCorrected Status = "CORRECTED"
	// StatusHalted means the exchange was unreachable and the trader was
	// deactivated.
	StatusHalted Status = "HALTED"
)

// Result describes what a reconciliation pass did.
type Result struct {
	Status     Status
	Correction string // human-readable description when corrected
}

// Manager reconciles traders against the exchange.
type Manager struct {
	client      exchange.Client
	traders     storage.TraderStore
	positions   storage.PositionStore
	logs        storage.SystemLogStore
	notifier    alert.Notifier
	log         *logrus.Entry
	maxAttempts int
}

// Options configures a Manager.
type Options struct {
	Client    exchange.Client
	Traders   storage.TraderStore
	Positions storage.PositionStore
	Logs      storage.SystemLogStore
	Notifier  alert.Notifier
	Log       *logrus.Entry

	// MaxAttempts bounds position fetch retries. Zero uses the default.
	MaxAttempts int
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Manager{
		client:      opts.Client,
		traders:     opts.Traders,
		positions:   opts.Positions,
		logs:        opts.Logs,
		notifier:    opts.Notifier,
		log:         opts.Log,
		maxAttempts: attempts,
	}
}

// Reconcile fetches the exchange position for the trader's symbol and
// aligns the local record with it. Idempotent: running twice against an
// unchanged exchange yields in-sync the second time.
func (m *Manager) Reconcile(ctx context.Context, trader *domain.TraderRecord) (Result, error) {
	remote, err := m.fetchPosition(ctx, trader.Symbol)
	if err != nil {
		m.halt(ctx, trader, err)
		return Result{Status: StatusHalted}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	local, err := m.positions.GetOpen(ctx, trader.ID, trader.Symbol)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Result{}, fmt.Errorf("load local position: %w", err)
	}

	correction, err := m.align(ctx, trader, local, remote)
	if err != nil {
		return Result{}, err
	}
	if correction == "" {
		return Result{Status: StatusInSync}, nil
	}

	m.recordCorrection(ctx, trader, correction)
	return Result{Status: StatusCorrected, Correction: correction}, nil
}

// fetchPosition queries the exchange, retrying transport failures within
// the attempt budget.
func (m *Manager) fetchPosition(ctx context.Context, symbol string) (*exchange.AccountPosition, error) {
	var lastErr error
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		pos, err := m.client.GetPosition(ctx, symbol)
		if err == nil {
			return pos, nil
		}
		lastErr = err
		if !exchange.IsTransport(err) {
			break
		}
	}
	return nil, lastErr
}

// align rewrites the local record to match the exchange. It returns a
// description of the correction, or "" when already in sync.
func (m *Manager) align(ctx context.Context, trader *domain.TraderRecord, local *domain.Position, remote *exchange.AccountPosition) (string, error) {
	remoteFlat := remote.Side == domain.PositionFlat || remote.Size == 0
	localFlat := local.IsFlat()

	switch {
	case remoteFlat && localFlat:
		return "", nil

	case remoteFlat && !localFlat:
		if err := m.positions.Close(ctx, trader.ID, trader.Symbol); err != nil {
			return "", fmt.Errorf("close drifted position: %w", err)
		}
		return fmt.Sprintf("local %s %.8f closed: exchange is flat", local.Side, local.Size), nil

	case !remoteFlat && localFlat:
		if err := m.positions.Upsert(ctx, m.fromRemote(trader, remote)); err != nil {
			return "", fmt.Errorf("adopt exchange position: %w", err)
		}
		return fmt.Sprintf("adopted exchange %s %.8f: local was flat", remote.Side, remote.Size), nil

	default:
		if local.Side == remote.Side && math.Abs(local.Size-remote.Size) < sizeEpsilon {
			return "", nil
		}
		if err := m.positions.Upsert(ctx, m.fromRemote(trader, remote)); err != nil {
			return "", fmt.Errorf("rewrite drifted position: %w", err)
		}
		return fmt.Sprintf("local %s %.8f rewritten to exchange %s %.8f",
			local.Side, local.Size, remote.Side, remote.Size), nil
	}
}

// fromRemote builds a local position record from the exchange's view.
func (m *Manager) fromRemote(trader *domain.TraderRecord, remote *exchange.AccountPosition) *domain.Position {
	return &domain.Position{
		TraderID:      trader.ID,
		Symbol:        trader.Symbol,
		Side:          remote.Side,
		Size:          remote.Size,
		EntryPrice:    remote.EntryPrice,
		EntryTime:     time.Now().UTC(),
		UnrealizedPnL: remote.UnrealizedPnL,
		Open:          true,
	}
}

// recordCorrection persists the discrepancy and alerts the operator.
func (m *Manager) recordCorrection(ctx context.Context, trader *domain.TraderRecord, correction string) {
	m.log.WithFields(logrus.Fields{
		"trader_id":  trader.ID,
		"symbol":     trader.Symbol,
		"correction": correction,
	}).Warn("reconciliation corrected local state")

	entry := &domain.SystemLog{
		TraderID:  trader.ID,
		Level:     domain.LogLevelWarning,
		Component: domain.ComponentReconcile,
		Event:     "position_corrected",
		Message:   correction,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.logs.Insert(ctx, entry); err != nil {
		m.log.WithError(err).Error("persist reconciliation correction")
	}

	m.notifier.Notify(ctx, alert.Event{
		Severity: alert.SeverityWarning,
		TraderID: trader.ID,
		Symbol:   trader.Symbol,
		Title:    "position corrected",
		Message:  correction,
	})
}

// halt deactivates a trader whose state cannot be verified.
func (m *Manager) halt(ctx context.Context, trader *domain.TraderRecord, cause error) {
	m.log.WithError(cause).WithField("trader_id", trader.ID).Error("exchange unreachable, halting trader")

	if err := m.traders.SetActive(ctx, trader.ID, false); err != nil {
		m.log.WithError(err).Error("deactivate unreachable trader")
	}
	trader.Active = false

	entry := &domain.SystemLog{
		TraderID:  trader.ID,
		Level:     domain.LogLevelCritical,
		Component: domain.ComponentReconcile,
		Event:     "reconcile_unreachable",
		Message:   fmt.Sprintf("exchange unreachable after %d attempts: %v", m.maxAttempts, cause),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.logs.Insert(ctx, entry); err != nil {
		m.log.WithError(err).Error("persist reconciliation halt")
	}

	m.notifier.Notify(ctx, alert.Event{
		Severity: alert.SeverityCritical,
		TraderID: trader.ID,
		Symbol:   trader.Symbol,
		Title:    "trader halted",
		Message:  entry.Message,
	})
}
