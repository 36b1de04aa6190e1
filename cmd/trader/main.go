// Package main runs the live trading engine: one scheduled decision loop
// per configured symbol, backed by postgres + clickhouse storage, with a
// websocket kline stream feeding the bar store and REST backfill covering
// gaps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"binance-trade-engine/internal/alert"
	"binance-trade-engine/internal/config"
	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/exchange"
	"binance-trade-engine/internal/execution"
	"binance-trade-engine/internal/indicator"
	"binance-trade-engine/internal/observability"
	"binance-trade-engine/internal/reconcile"
	"binance-trade-engine/internal/risk"
	"binance-trade-engine/internal/scheduler"
	"binance-trade-engine/internal/storage"
	chstore "binance-trade-engine/internal/storage/clickhouse"
	"binance-trade-engine/internal/storage/memory"
	"binance-trade-engine/internal/storage/migrations"
	pgstore "binance-trade-engine/internal/storage/postgres"
	"binance-trade-engine/internal/trader"
)

// allStores holds all storage implementations.
type allStores struct {
	traders    storage.TraderStore
	positions  storage.PositionStore
	trades     storage.TradeStore
	logs       storage.SystemLogStore
	bars       storage.BarStore
	indicators storage.IndicatorStore
}

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	log := logrus.NewEntry(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("create stores")
	}
	defer cleanup()

	limiter := rate.NewLimiter(rate.Limit(cfg.ExchangeRatePerSec), burst(cfg.ExchangeRatePerSec))
	client := exchange.NewBinanceClient(exchange.BinanceOptions{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceSecretKey,
		Testnet:   cfg.BinanceTestnet,
		Limiter:   limiter,
	})

	notifier := buildNotifier(cfg, log)

	riskMgr := risk.NewManager(risk.Options{
		Traders:      stores.traders,
		Logs:         stores.logs,
		Notifier:     notifier,
		Log:          log,
		QuantityStep: cfg.QuantityStep,
	})
	exec := execution.NewCoordinator(client, stores.trades, log)
	reconciler := reconcile.NewManager(reconcile.Options{
		Client:    client,
		Traders:   stores.traders,
		Positions: stores.positions,
		Logs:      stores.logs,
		Notifier:  notifier,
		Log:       log,
	})
	pipeline := indicator.NewPipeline(stores.bars, stores.indicators, client, log)

	traders, err := buildTraders(ctx, cfg, stores, trader.Options{
		Pipeline:   pipeline,
		Risk:       riskMgr,
		Execution:  exec,
		Reconciler: reconciler,
		Client:     client,
		Traders:    stores.traders,
		Positions:  stores.positions,
		Logs:       stores.logs,
		Notifier:   notifier,
		Log:        log,
	})
	if err != nil {
		log.WithError(err).Fatal("build traders")
	}

	// Live klines keep the bar store warm so cycles rarely need backfill.
	stream, err := exchange.NewKlineStream(ctx, exchange.DefaultStreamConfig(), cfg.Symbols, log)
	if err != nil {
		log.WithError(err).Warn("kline stream unavailable, relying on REST backfill")
	} else {
		defer stream.Close()
		go consumeStream(ctx, stream, stores.bars, log)
	}

	go serveMetrics(cfg.MetricsAddr, log)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}()

	runners := make([]scheduler.Runner, len(traders))
	for i, tr := range traders {
		runners[i] = tr
	}

	sched := scheduler.New(scheduler.Options{
		Traders: runners,
		Log:     log,
	})
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("scheduler")
	}

	log.Info("shutdown complete")
}

// createStores wires memory or postgres + clickhouse storage, running
// migrations for the database-backed mode.
func createStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	if cfg.UseMemory {
		return &allStores{
			traders:    memory.NewTraderStore(),
			positions:  memory.NewPositionStore(),
			trades:     memory.NewTradeStore(),
			logs:       memory.NewSystemLogStore(),
			bars:       memory.NewBarStore(),
			indicators: memory.NewIndicatorStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		traders:    pgstore.NewTraderStore(pool),
		positions:  pgstore.NewPositionStore(pool),
		trades:     pgstore.NewTradeStore(pool),
		logs:       pgstore.NewSystemLogStore(pool),
		bars:       chstore.NewBarStore(conn),
		indicators: chstore.NewIndicatorStore(conn),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// buildTraders loads or creates one trader record per configured symbol
// and wraps each in a Trader.
func buildTraders(ctx context.Context, cfg *config.Config, stores *allStores, base trader.Options) ([]*trader.Trader, error) {
	var traders []*trader.Trader
	for _, symbol := range cfg.Symbols {
		record, err := ensureRecord(ctx, cfg, stores.traders, symbol)
		if err != nil {
			return nil, err
		}

		opts := base
		opts.Record = record
		tr, err := trader.New(opts)
		if err != nil {
			return nil, err
		}
		traders = append(traders, tr)
	}
	return traders, nil
}

// ensureRecord loads the trader for symbol, creating it on first run.
func ensureRecord(ctx context.Context, cfg *config.Config, traders storage.TraderStore, symbol string) (*domain.TraderRecord, error) {
	id := "trader-" + strings.ToLower(symbol)

	record, err := traders.GetByID(ctx, id)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load trader %s: %w", id, err)
	}

	strategyCfg := domain.DefaultStrategyConfig()
	strategyCfg.MaxLoss = cfg.MaxLoss

	record = &domain.TraderRecord{
		ID:               id,
		Symbol:           symbol,
		Strategy:         strategyCfg,
		AllocatedBudget:  cfg.AllocatedBudget,
		InvestmentAmount: cfg.InvestmentAmount,
		Active:           true,
	}
	if err := traders.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("create trader %s: %w", id, err)
	}
	return record, nil
}

// buildNotifier wires log alerts plus Slack when a webhook is configured.
func buildNotifier(cfg *config.Config, log *logrus.Entry) alert.Notifier {
	notifiers := alert.Multi{alert.NewLogNotifier(log)}
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlackNotifier(cfg.SlackWebhookURL, log))
	}
	return notifiers
}

// consumeStream writes streamed closed bars into the bar store.
func consumeStream(ctx context.Context, stream *exchange.KlineStream, bars storage.BarStore, log *logrus.Entry) {
	for bar := range stream.Bars() {
		if err := bars.InsertBulk(ctx, []*domain.Bar{bar}); err != nil {
			log.WithError(err).WithField("symbol", bar.Symbol).Warn("store streamed bar")
			continue
		}
		observability.RecordBarStreamed()
	}
}

// serveMetrics exposes /metrics and /health.
func serveMetrics(addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.WithField("addr", addr).Info("metrics server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server")
	}
}

// burst sizes the limiter burst from the sustained rate.
func burst(perSec float64) int {
	b := int(perSec)
	if b < 1 {
		b = 1
	}
	return b
}
