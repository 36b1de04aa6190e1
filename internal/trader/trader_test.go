package trader

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-trade-engine/internal/alert"
	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/exchange"
	"binance-trade-engine/internal/execution"
	"binance-trade-engine/internal/indicator"
	"binance-trade-engine/internal/reconcile"
	"binance-trade-engine/internal/risk"
	"binance-trade-engine/internal/storage"
	"binance-trade-engine/internal/storage/memory"
)

const testSymbol = "BTCUSDT"

// windowStart is minute-aligned.
const windowStart = int64(1_700_000_040_000)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// scripted returns queued signals in order and HOLD once exhausted.
type scripted struct {
	mu      sync.Mutex
	signals []domain.Signal
	calls   int
	block   chan struct{} // when set, Evaluate waits on it
	entered chan struct{} // receives when Evaluate starts
}

func (s *scripted) Evaluate(_, _ *domain.IndicatorSnapshot, _ *domain.Position) domain.Signal {
	s.mu.Lock()
	s.calls++
	block := s.block
	entered := s.entered
	var sig domain.Signal
	if len(s.signals) > 0 {
		sig = s.signals[0]
		s.signals = s.signals[1:]
	} else {
		sig = domain.Signal{Symbol: testSymbol, Direction: domain.SignalHold}
	}
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return sig
}

func (s *scripted) ID() string { return "scripted" }

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scripted) queue(sig domain.Signal) {
	s.mu.Lock()
	s.signals = append(s.signals, sig)
	s.mu.Unlock()
}

type panickyStrategy struct{}

func (p *panickyStrategy) Evaluate(_, _ *domain.IndicatorSnapshot, _ *domain.Position) domain.Signal {
	panic("boom")
}

func (p *panickyStrategy) ID() string { return "panicky" }

type fixture struct {
	trader    *Trader
	strat     *scripted
	fake      *exchange.Fake
	traders   *memory.TraderStore
	positions *memory.PositionStore
	trades    *memory.TradeStore
	logs      *memory.SystemLogStore
	bars      *memory.BarStore
	recorder  *alert.Recorder
	asOf      int64
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(*domain.TraderRecord) {})
}

func newFixtureWith(t *testing.T, tweak func(*domain.TraderRecord)) *fixture {
	t.Helper()

	f := &fixture{
		strat:     &scripted{},
		fake:      exchange.NewFake(),
		traders:   memory.NewTraderStore(),
		positions: memory.NewPositionStore(),
		trades:    memory.NewTradeStore(),
		logs:      memory.NewSystemLogStore(),
		bars:      memory.NewBarStore(),
		recorder:  alert.NewRecorder(),
	}
	f.fake.FillPrice = 100
	f.fake.SetBalance(1000)

	record := &domain.TraderRecord{
		ID:               "t1",
		Symbol:           testSymbol,
		Strategy:         domain.DefaultStrategyConfig(),
		AllocatedBudget:  1000,
		InvestmentAmount: 500,
		Active:           true,
	}
	tweak(record)
	require.NoError(t, f.traders.Insert(context.Background(), record))

	log := testLogger()
	indicators := memory.NewIndicatorStore()
	pipeline := indicator.NewPipeline(f.bars, indicators, f.fake, log)
	riskMgr := risk.NewManager(risk.Options{
		Traders:  f.traders,
		Logs:     f.logs,
		Notifier: f.recorder,
		Log:      log,
	})
	exec := execution.NewCoordinator(f.fake, f.trades, log)
	reconciler := reconcile.NewManager(reconcile.Options{
		Client:    f.fake,
		Traders:   f.traders,
		Positions: f.positions,
		Logs:      f.logs,
		Notifier:  f.recorder,
		Log:       log,
	})

	tr, err := New(Options{
		Record:     record,
		Strategy:   f.strat,
		Pipeline:   pipeline,
		Risk:       riskMgr,
		Execution:  exec,
		Reconciler: reconciler,
		Client:     f.fake,
		Traders:    f.traders,
		Positions:  f.positions,
		Logs:       f.logs,
		Notifier:   f.recorder,
		Log:        log,
	})
	require.NoError(t, err)
	f.trader = tr

	// Seed a full contiguous bar window so ticks get past the history check.
	want := record.Strategy.MinBars() + 1
	f.asOf = windowStart + int64(want)*domain.BarIntervalMs
	bars := make([]*domain.Bar, want)
	for i := range bars {
		close := 100 + float64(i%5)
		bars[i] = &domain.Bar{
			Symbol:   testSymbol,
			OpenTime: windowStart + int64(i)*domain.BarIntervalMs,
			Open:     close - 0.5,
			High:     close + 1,
			Low:      close - 1,
			Close:    close,
			Volume:   10,
		}
	}
	require.NoError(t, f.bars.InsertBulk(context.Background(), bars))

	return f
}

func enterLong() domain.Signal {
	return domain.Signal{
		Symbol:         testSymbol,
		Direction:      domain.SignalEnterLong,
		ReferencePrice: 100,
		GeneratedAt:    time.Now(),
	}
}

func exitSignal() domain.Signal {
	return domain.Signal{
		Symbol:         testSymbol,
		Direction:      domain.SignalExit,
		ReferencePrice: 110,
		GeneratedAt:    time.Now(),
	}
}

func TestTickEntryOpensPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.strat.queue(enterLong())

	require.NoError(t, f.trader.Tick(ctx, f.asOf))
	assert.Equal(t, domain.TraderIdle, f.trader.State())

	pos, err := f.positions.GetOpen(ctx, "t1", testSymbol)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionLong, pos.Side)
	assert.InDelta(t, 5.0, pos.Size, 1e-9, "min(500, 1000) at price 100")

	trades, err := f.trades.GetByTrader(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, trades, 1)
	assert.Equal(t, domain.TradeEntry, trades[0].Kind)
}

func TestTickHoldStillReconciles(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.trader.Tick(context.Background(), f.asOf))

	assert.Equal(t, 0, f.fake.PlaceCalls())
	assert.Equal(t, 1, f.fake.PositionCalls(), "every cycle ends in reconciliation")
	assert.Equal(t, domain.TraderIdle, f.trader.State())
}

func TestTickInsufficientHistorySkipsCycle(t *testing.T) {
	f := newFixture(t)
	f.strat.queue(enterLong())

	// One minute past the seeded window: a bar is missing and the
	// exchange has nothing to backfill it with.
	require.NoError(t, f.trader.Tick(context.Background(), f.asOf+domain.BarIntervalMs))

	assert.Equal(t, 0, f.strat.Calls(), "strategy never consulted")
	assert.Equal(t, 0, f.fake.PlaceCalls())
	assert.Equal(t, domain.TraderIdle, f.trader.State())
}

func TestTickExitRealizesPnL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.positions.Upsert(ctx, &domain.Position{
		TraderID:   "t1",
		Symbol:     testSymbol,
		Side:       domain.PositionLong,
		Size:       2,
		EntryPrice: 100,
		EntryTime:  time.Now(),
		Open:       true,
	}))
	f.fake.SetPosition(testSymbol, &exchange.AccountPosition{
		Symbol: testSymbol, Side: domain.PositionLong, Size: 2, EntryPrice: 100,
	})
	f.fake.FillPrice = 110
	f.strat.queue(exitSignal())

	require.NoError(t, f.trader.Tick(ctx, f.asOf))

	_, err := f.positions.GetOpen(ctx, "t1", testSymbol)
	assert.Error(t, err, "position record closed after exit fill")

	stored, err := f.traders.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, stored.TotalPnL, 1e-9, "closed 10 above entry on 2 units")
}

func TestTickKillSwitchHaltsUntilCleared(t *testing.T) {
	f := newFixtureWith(t, func(r *domain.TraderRecord) {
		r.Strategy.MaxLoss = 50
		r.TotalPnL = -100
	})
	ctx := context.Background()

	f.strat.queue(enterLong())
	require.NoError(t, f.trader.Tick(ctx, f.asOf))
	assert.Equal(t, domain.TraderHalted, f.trader.State())

	stored, err := f.traders.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, 0, f.fake.PlaceCalls(), "kill switch blocks the entry")

	// Halted traders skip ticks entirely.
	calls := f.strat.Calls()
	f.strat.queue(enterLong())
	require.NoError(t, f.trader.Tick(ctx, f.asOf))
	assert.Equal(t, calls, f.strat.Calls(), "halted trader does not evaluate")

	// Manual clear reactivates.
	require.NoError(t, f.trader.ClearHalt(ctx))
	assert.Equal(t, domain.TraderIdle, f.trader.State())
	stored, err = f.traders.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, stored.Active)
}

func TestTickUnknownOutcomeStillReconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	transport := &exchange.TransportError{Op: "place order", Err: errors.New("timeout")}
	f.fake.QueuePlaceFailure(transport, false)
	f.fake.QueuePlaceFailure(transport, false)
	f.strat.queue(enterLong())

	require.NoError(t, f.trader.Tick(ctx, f.asOf))

	assert.Equal(t, 2, f.fake.PlaceCalls(), "one retry with the same token")
	assert.Equal(t, 1, f.fake.PositionCalls(), "unknown outcome forces reconciliation")

	trades, err := f.trades.GetByTrader(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, domain.TraderIdle, f.trader.State())
}

func TestTickTransportRetryRecoversFill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The response to the first attempt is lost in transit after the
	// exchange executed it. The same-token retry returns the original fill.
	transport := &exchange.TransportError{Op: "place order", Err: errors.New("timeout")}
	f.fake.QueuePlaceFailure(transport, true)
	f.strat.queue(enterLong())

	require.NoError(t, f.trader.Tick(ctx, f.asOf))
	assert.Equal(t, 2, f.fake.PlaceCalls())

	pos, err := f.positions.GetOpen(ctx, "t1", testSymbol)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionLong, pos.Side)
	assert.InDelta(t, 5.0, pos.Size, 1e-9)

	trades, err := f.trades.GetByTrader(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

// brokenPositionStore fails reads so reconciliation cannot verify state.
type brokenPositionStore struct {
	storage.PositionStore
}

func (s *brokenPositionStore) GetOpen(context.Context, string, string) (*domain.Position, error) {
	return nil, errors.New("connection reset")
}

func TestTickReconcileStorageFailurePersistsHalt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.trader.reconciler = reconcile.NewManager(reconcile.Options{
		Client:    f.fake,
		Traders:   f.traders,
		Positions: &brokenPositionStore{PositionStore: f.positions},
		Logs:      f.logs,
		Notifier:  f.recorder,
		Log:       testLogger(),
	})

	require.Error(t, f.trader.Tick(ctx, f.asOf))
	assert.Equal(t, domain.TraderHalted, f.trader.State())

	stored, err := f.traders.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, stored.Active, "halt must deactivate the stored record")

	entries, err := f.logs.GetByTrader(ctx, "t1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries, "halt must be persisted")
	assert.Equal(t, "trader_halted", entries[0].Event)

	events := f.recorder.Events()
	require.NotEmpty(t, events, "halt must be alerted")
	assert.Equal(t, alert.SeverityCritical, events[len(events)-1].Severity)
}

func TestTickPanicHaltsTrader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.trader.strat = &panickyStrategy{}

	require.NoError(t, f.trader.Tick(ctx, f.asOf))
	assert.Equal(t, domain.TraderHalted, f.trader.State())

	stored, err := f.traders.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, stored.Active)

	events := f.recorder.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, alert.SeverityCritical, events[len(events)-1].Severity)
}

func TestTickSingleFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.strat.block = make(chan struct{})
	f.strat.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		done <- f.trader.Tick(ctx, f.asOf)
	}()

	<-f.strat.entered

	// A tick that overlaps a running cycle is skipped, never queued.
	require.NoError(t, f.trader.Tick(ctx, f.asOf))
	assert.Equal(t, 1, f.strat.Calls())

	close(f.strat.block)
	require.NoError(t, <-done)
}

func TestClearHaltWhenNotHalted(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.trader.ClearHalt(context.Background()), ErrNotHalted)
}
