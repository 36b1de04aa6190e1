package risk

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-trade-engine/internal/alert"
	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage/memory"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestManager(t *testing.T) (*Manager, *memory.TraderStore, *memory.SystemLogStore, *alert.Recorder) {
	t.Helper()
	traders := memory.NewTraderStore()
	logs := memory.NewSystemLogStore()
	recorder := alert.NewRecorder()
	m := NewManager(Options{
		Traders:  traders,
		Logs:     logs,
		Notifier: recorder,
		Log:      testLogger(),
	})
	return m, traders, logs, recorder
}

func testTrader() *domain.TraderRecord {
	return &domain.TraderRecord{
		ID:               "t1",
		Symbol:           "BTCUSDT",
		Strategy:         domain.DefaultStrategyConfig(),
		AllocatedBudget:  1000,
		InvestmentAmount: 500,
		Active:           true,
	}
}

func entrySignal(price float64) domain.Signal {
	return domain.Signal{
		Symbol:         "BTCUSDT",
		Direction:      domain.SignalEnterLong,
		ReferencePrice: price,
		GeneratedAt:    time.Now(),
	}
}

func TestValidateApprovesEntry(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	trader := testTrader()

	verdict := m.Validate(context.Background(), trader, entrySignal(100), nil, 1000)
	require.True(t, verdict.Approved)
	// min(500, 1000) / 100 = 5.0, already on step
	assert.InDelta(t, 5.0, verdict.Quantity, 1e-9)
}

func TestValidateInactiveTrader(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	trader := testTrader()
	trader.Active = false

	verdict := m.Validate(context.Background(), trader, entrySignal(100), nil, 1000)
	assert.False(t, verdict.Approved)
	assert.Equal(t, "trader inactive", verdict.Reason)
}

func TestValidateEntryWithOpenPositionRejected(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	trader := testTrader()
	pos := &domain.Position{
		TraderID: "t1", Symbol: "BTCUSDT",
		Side: domain.PositionLong, Size: 1, Open: true,
	}

	verdict := m.Validate(context.Background(), trader, entrySignal(100), pos, 1000)
	assert.False(t, verdict.Approved)
	assert.Equal(t, "position already open", verdict.Reason)
}

func TestValidateExitWhileFlatRejected(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	sig := domain.Signal{Symbol: "BTCUSDT", Direction: domain.SignalExit, ReferencePrice: 100}

	verdict := m.Validate(context.Background(), testTrader(), sig, nil, 1000)
	assert.False(t, verdict.Approved)
	assert.Equal(t, "no position to exit", verdict.Reason)
}

func TestValidateExitApprovedForFullSize(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	pos := &domain.Position{
		TraderID: "t1", Symbol: "BTCUSDT",
		Side: domain.PositionShort, Size: 0.75, Open: true,
	}
	sig := domain.Signal{Symbol: "BTCUSDT", Direction: domain.SignalExit, ReferencePrice: 100}

	verdict := m.Validate(context.Background(), testTrader(), sig, pos, 0)
	require.True(t, verdict.Approved)
	assert.InDelta(t, 0.75, verdict.Quantity, 1e-9)
}

func TestValidateInsufficientBalance(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	// 0.01 available at price 100 sizes below the lot step.
	verdict := m.Validate(context.Background(), testTrader(), entrySignal(100), nil, 0.01)
	assert.False(t, verdict.Approved)
}

func TestKillSwitchDeactivatesAndAlerts(t *testing.T) {
	m, traders, logs, recorder := newTestManager(t)
	ctx := context.Background()

	trader := testTrader()
	trader.Strategy.MaxLoss = 200
	trader.TotalPnL = -250
	require.NoError(t, traders.Insert(ctx, trader))

	verdict := m.Validate(ctx, trader, entrySignal(100), nil, 1000)
	require.False(t, verdict.Approved)
	assert.Equal(t, "kill switch tripped", verdict.Reason)

	// Deactivation persisted.
	stored, err := traders.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, stored.Active)

	// Event persisted and alerted.
	entries, err := logs.GetByTrader(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kill_switch", entries[0].Event)

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, alert.SeverityCritical, events[0].Severity)

	// Entries stay blocked until a manual reactivation.
	verdict = m.Validate(ctx, trader, entrySignal(100), nil, 1000)
	assert.False(t, verdict.Approved)
	assert.Equal(t, "trader inactive", verdict.Reason)
}

func TestKillSwitchDisabledWhenMaxLossZero(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	trader := testTrader()
	trader.Strategy.MaxLoss = 0
	trader.TotalPnL = -10000

	verdict := m.Validate(context.Background(), trader, entrySignal(100), nil, 1000)
	assert.True(t, verdict.Approved)
}

func TestKillSwitchDoesNotBlockExit(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	trader := testTrader()
	trader.Strategy.MaxLoss = 200
	trader.TotalPnL = -250
	pos := &domain.Position{
		TraderID: "t1", Symbol: "BTCUSDT",
		Side: domain.PositionLong, Size: 1, Open: true,
	}
	sig := domain.Signal{Symbol: "BTCUSDT", Direction: domain.SignalExit, ReferencePrice: 100}

	verdict := m.Validate(context.Background(), trader, sig, pos, 1000)
	assert.True(t, verdict.Approved, "reducing exposure is always allowed")
}

func TestPositionSizeTruncatesToStep(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	trader := testTrader()
	trader.InvestmentAmount = 100

	// 100 / 30000 = 0.00333... truncated to 0.003
	quantity := m.PositionSize(trader, 1000, 30000)
	assert.InDelta(t, 0.003, quantity, 1e-9)
}
