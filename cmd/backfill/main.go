// Package main backfills historical minute bars into clickhouse, so a
// fresh deployment starts with enough history for indicator warmup.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"binance-trade-engine/internal/config"
	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/exchange"
	chstore "binance-trade-engine/internal/storage/clickhouse"
	"binance-trade-engine/internal/storage/migrations"
)

// chunkBars is the exchange's maximum klines per request.
const chunkBars = 1500

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	hours := flag.Int("hours", 24, "How many trailing hours of bars to fetch")
	symbols := flag.String("symbols", "", "Comma-separated symbols (default: configured SYMBOLS)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	log := logrus.NewEntry(logger)

	list := cfg.Symbols
	if *symbols != "" {
		list = nil
		for _, s := range strings.Split(*symbols, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				list = append(list, s)
			}
		}
	}

	ctx := context.Background()

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		log.WithError(err).Fatal("clickhouse migrations")
	}
	defer conn.Close()
	bars := chstore.NewBarStore(conn)

	client := exchange.NewBinanceClient(exchange.BinanceOptions{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceSecretKey,
		Testnet:   cfg.BinanceTestnet,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.ExchangeRatePerSec), 1),
	})

	end := domain.AlignToMinute(time.Now().UnixMilli()) - domain.BarIntervalMs
	start := end - int64(*hours)*60*domain.BarIntervalMs

	for _, symbol := range list {
		n, err := backfillSymbol(ctx, client, bars, symbol, start, end)
		if err != nil {
			log.WithError(err).WithField("symbol", symbol).Fatal("backfill failed")
		}
		log.WithFields(logrus.Fields{"symbol": symbol, "bars": n}).Info("backfill complete")
	}
}

// backfillSymbol fetches [start, end] in exchange-sized chunks.
func backfillSymbol(ctx context.Context, client exchange.Client, bars *chstore.BarStore, symbol string, start, end int64) (int, error) {
	total := 0
	for from := start; from <= end; from += chunkBars * domain.BarIntervalMs {
		to := from + (chunkBars-1)*domain.BarIntervalMs
		if to > end {
			to = end
		}

		fetched, err := client.GetBars(ctx, symbol, from, to)
		if err != nil {
			return total, fmt.Errorf("fetch %s [%d, %d]: %w", symbol, from, to, err)
		}
		if len(fetched) == 0 {
			continue
		}
		if err := bars.InsertBulk(ctx, fetched); err != nil {
			return total, fmt.Errorf("store %s bars: %w", symbol, err)
		}
		total += len(fetched)
	}
	return total, nil
}
