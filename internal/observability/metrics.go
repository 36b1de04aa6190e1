// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	TickCyclesTotal   *prometheus.CounterVec
	TickCycleDuration *prometheus.HistogramVec
	CyclePanicsTotal  prometheus.Counter

	// Signal metrics
	SignalsGenerated *prometheus.CounterVec
	RiskRejections   *prometheus.CounterVec

	// Execution metrics
	OrderOutcomes *prometheus.CounterVec
	OrderRetries  prometheus.Counter
	RealizedPnL   *prometheus.GaugeVec

	// Reconciliation metrics
	ReconcileResults   *prometheus.CounterVec
	PositionsCorrected prometheus.Counter

	// Trader metrics
	TradersHalted prometheus.Gauge
	TradersActive prometheus.Gauge

	// Market data metrics
	BarsBackfilled     prometheus.Counter
	BarsStreamed       prometheus.Counter
	InsufficientCycles prometheus.Counter

	// Exchange metrics
	ExchangeCallLatency *prometheus.HistogramVec
	ExchangeErrors      *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_engine"
	}

	return &Metrics{
		// Cycle metrics
		TickCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "tick_cycles_total",
			Help:      "Total number of tick cycles by trader and result",
		}, []string{"trader_id", "result"}),
		TickCycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "tick_cycle_duration_seconds",
			Help:      "Tick cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"trader_id"}),
		CyclePanicsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "cycle_panics_total",
			Help:      "Total number of recovered cycle panics",
		}),

		// Signal metrics
		SignalsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "signals_generated_total",
			Help:      "Total number of signals generated by direction",
		}, []string{"symbol", "direction"}),
		RiskRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Total number of risk rejections by reason",
		}, []string{"trader_id", "reason"}),

		// Execution metrics
		OrderOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "order_outcomes_total",
			Help:      "Total number of order outcomes by status",
		}, []string{"symbol", "status"}),
		OrderRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "order_retries_total",
			Help:      "Total number of same-token order retries",
		}),
		RealizedPnL: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "realized_pnl",
			Help:      "Cumulative realized PnL per trader",
		}, []string{"trader_id"}),

		// Reconciliation metrics
		ReconcileResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "results_total",
			Help:      "Total number of reconciliation passes by status",
		}, []string{"trader_id", "status"}),
		PositionsCorrected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "positions_corrected_total",
			Help:      "Total number of local positions rewritten to exchange truth",
		}),

		// Trader metrics
		TradersHalted: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "halted",
			Help:      "Number of traders currently halted",
		}),
		TradersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "active",
			Help:      "Number of traders currently active",
		}),

		// Market data metrics
		BarsBackfilled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market_data",
			Name:      "bars_backfilled_total",
			Help:      "Total number of bars fetched via REST backfill",
		}),
		BarsStreamed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market_data",
			Name:      "bars_streamed_total",
			Help:      "Total number of closed bars received from the websocket stream",
		}),
		InsufficientCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market_data",
			Name:      "insufficient_history_cycles_total",
			Help:      "Total number of cycles skipped for insufficient history",
		}),

		// Exchange metrics
		ExchangeCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "call_latency_seconds",
			Help:      "Exchange call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ExchangeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "errors_total",
			Help:      "Total number of exchange errors by type",
		}, []string{"method", "error_type"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTickCycle records one completed tick cycle.
func RecordTickCycle(traderID, result string, durationSeconds float64) {
	DefaultMetrics.TickCyclesTotal.WithLabelValues(traderID, result).Inc()
	DefaultMetrics.TickCycleDuration.WithLabelValues(traderID).Observe(durationSeconds)
}

// RecordSignal records a generated signal.
func RecordSignal(symbol, direction string) {
	DefaultMetrics.SignalsGenerated.WithLabelValues(symbol, direction).Inc()
}

// RecordRiskRejection records a risk rejection.
func RecordRiskRejection(traderID, reason string) {
	DefaultMetrics.RiskRejections.WithLabelValues(traderID, reason).Inc()
}

// RecordOrderOutcome records an execution outcome.
func RecordOrderOutcome(symbol, status string) {
	DefaultMetrics.OrderOutcomes.WithLabelValues(symbol, status).Inc()
}

// RecordReconcileResult records a reconciliation pass.
func RecordReconcileResult(traderID, status string) {
	DefaultMetrics.ReconcileResults.WithLabelValues(traderID, status).Inc()
	if status == "CORRECTED" {
		DefaultMetrics.PositionsCorrected.Inc()
	}
}

// RecordOrderRetry records a same-token retry after a transport failure.
func RecordOrderRetry() {
	DefaultMetrics.OrderRetries.Inc()
}

// SetRealizedPnL updates the cumulative realized PnL gauge for a trader.
func SetRealizedPnL(traderID string, total float64) {
	DefaultMetrics.RealizedPnL.WithLabelValues(traderID).Set(total)
}

// RecordBarsBackfilled records bars fetched via REST backfill.
func RecordBarsBackfilled(n int) {
	DefaultMetrics.BarsBackfilled.Add(float64(n))
}

// RecordBarStreamed records one closed bar received from the stream.
func RecordBarStreamed() {
	DefaultMetrics.BarsStreamed.Inc()
}

// RecordInsufficientHistory records a cycle skipped for missing bars.
func RecordInsufficientHistory() {
	DefaultMetrics.InsufficientCycles.Inc()
}

// RecordCyclePanic records a recovered cycle panic.
func RecordCyclePanic() {
	DefaultMetrics.CyclePanicsTotal.Inc()
}

// UpdateTraderCounts updates the active/halted gauges.
func UpdateTraderCounts(active, halted int) {
	DefaultMetrics.TradersActive.Set(float64(active))
	DefaultMetrics.TradersHalted.Set(float64(halted))
}

// RecordExchangeCall records exchange call latency and errors.
func RecordExchangeCall(method string, seconds float64, err error) {
	DefaultMetrics.ExchangeCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.ExchangeErrors.WithLabelValues(method, "call_failed").Inc()
	}
}
