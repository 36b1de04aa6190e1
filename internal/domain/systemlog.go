package domain

import "time"

// Log levels for persisted system events.
const (
	LogLevelInfo     = "INFO"
	LogLevelWarning  = "WARNING"
	LogLevelError    = "ERROR"
	LogLevelCritical = "CRITICAL"
)

// Components that emit persisted system events.
const (
	ComponentTrader    = "TRADER"
	ComponentRisk      = "RISK_MANAGER"
	ComponentExecution = "EXECUTION"
	ComponentReconcile = "RECONCILER"
	ComponentScheduler = "SCHEDULER"
)

// SystemLog is a persisted operational event. Every halt and reconciliation
// mismatch produces one; nothing is swallowed silently.
type SystemLog struct {
	TraderID  string
	Level     string
	Component string
	Event     string
	Message   string
	CreatedAt time.Time
}
