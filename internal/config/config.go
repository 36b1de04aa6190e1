// Package config loads process configuration from the environment, with
// optional .env file support. Configuration is read once at startup; there
// is no hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	// Exchange credentials.
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceTestnet   bool

	// Storage. UseMemory replaces postgres and clickhouse with in-memory
	// stores; useful for dry runs.
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	// Symbols traded, one trader per symbol.
	Symbols []string

	// Budgets applied to every trader in quote currency.
	AllocatedBudget  float64
	InvestmentAmount float64
	MaxLoss          float64

	// QuantityStep is the lot step order quantities are truncated to.
	QuantityStep float64

	// ExchangeRatePerSec caps outbound exchange calls process-wide.
	ExchangeRatePerSec float64

	// SlackWebhookURL enables Slack alerts when non-empty.
	SlackWebhookURL string

	// MetricsAddr is the Prometheus /metrics listen address.
	MetricsAddr string

	LogLevel string
}

// Load reads configuration from a .env file (when present) and the
// environment. Environment variables win over file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ".env"
	}
	// A missing file is fine; system env vars are enough.
	_ = godotenv.Load(path)

	cfg := &Config{
		BinanceAPIKey:      os.Getenv("BINANCE_API_KEY"),
		BinanceSecretKey:   os.Getenv("BINANCE_SECRET_KEY"),
		BinanceTestnet:     envBool("BINANCE_TESTNET", false),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN:      os.Getenv("CLICKHOUSE_DSN"),
		UseMemory:          envBool("USE_MEMORY", false),
		Symbols:            envList("SYMBOLS", []string{"BTCUSDT"}),
		AllocatedBudget:    envFloat("ALLOCATED_BUDGET", 1000),
		InvestmentAmount:   envFloat("INVESTMENT_AMOUNT", 100),
		MaxLoss:            envFloat("MAX_LOSS", 0),
		QuantityStep:       envFloat("QUANTITY_STEP", 0.001),
		ExchangeRatePerSec: envFloat("EXCHANGE_RATE_PER_SEC", 8),
		SlackWebhookURL:    os.Getenv("SLACK_WEBHOOK_URL"),
		MetricsAddr:        envStr("METRICS_ADDR", ":9090"),
		LogLevel:           envStr("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BinanceAPIKey == "" || c.BinanceSecretKey == "" {
		return fmt.Errorf("BINANCE_API_KEY and BINANCE_SECRET_KEY are required")
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		return fmt.Errorf("POSTGRES_DSN and CLICKHOUSE_DSN are required (set USE_MEMORY=true for in-memory storage)")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("SYMBOLS must name at least one symbol")
	}
	if c.InvestmentAmount <= 0 || c.AllocatedBudget <= 0 {
		return fmt.Errorf("INVESTMENT_AMOUNT and ALLOCATED_BUDGET must be positive")
	}
	if c.InvestmentAmount > c.AllocatedBudget {
		return fmt.Errorf("INVESTMENT_AMOUNT %.2f exceeds ALLOCATED_BUDGET %.2f", c.InvestmentAmount, c.AllocatedBudget)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
