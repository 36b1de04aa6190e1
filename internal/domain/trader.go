package domain

// TraderState is the lifecycle state of a trader's tick cycle.
type TraderState string

const (
	TraderIdle         TraderState = "IDLE"
	TraderEvaluating   TraderState = "EVALUATING"
	TraderOrderPending TraderState = "ORDER_PENDING"
	TraderReconciling  TraderState = "RECONCILING"
	// TraderHalted is reachable from any state on a kill-switch trip,
	// reconciliation failure, or cycle panic. Only ClearHalt leaves it.
	TraderHalted TraderState = "HALTED"
)

// TraderRecord binds one symbol to one strategy configuration and one budget.
// Active=false halts new entries but does not force-close an open position.
type TraderRecord struct {
	ID               string
	Symbol           string
	Strategy         StrategyConfig
	AllocatedBudget  float64
	InvestmentAmount float64 // <= AllocatedBudget
	TotalPnL         float64
	Active           bool
}

// RiskLimits are the per-order and aggregate limits derived from a trader's
// investment amount.
type RiskLimits struct {
	MaxNotionalPerOrder float64
	MaxExposure         float64
	MaxLoss             float64 // kill-switch threshold; <=0 disables it
}

// Limits derives RiskLimits from the trader's investment amount.
func (t *TraderRecord) Limits() RiskLimits {
	return RiskLimits{
		MaxNotionalPerOrder: t.InvestmentAmount,
		MaxExposure:         t.AllocatedBudget,
		MaxLoss:             t.Strategy.MaxLoss,
	}
}
