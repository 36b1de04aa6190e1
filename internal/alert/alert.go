// Package alert delivers operator notifications for events that need a
// human: halts, reconciliation corrections, kill-switch trips.
package alert

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Severity of an alert.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one operator notification.
type Event struct {
	Severity Severity
	TraderID string
	Symbol   string
	Title    string
	Message  string
}

// Notifier delivers events. Delivery is best effort: a failing notifier
// must never fail the trading cycle that raised the alert.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: log}
}

// Compile-time interface check.
var _ Notifier = (*LogNotifier)(nil)

// Notify logs the event at a level matching its severity.
func (n *LogNotifier) Notify(_ context.Context, event Event) {
	entry := n.log.WithFields(logrus.Fields{
		"trader_id": event.TraderID,
		"symbol":    event.Symbol,
		"title":     event.Title,
	})

	switch event.Severity {
	case SeverityCritical:
		entry.Error(event.Message)
	case SeverityWarning:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
}

// Multi fans one event out to several notifiers.
type Multi []Notifier

// Compile-time interface check.
var _ Notifier = (Multi)(nil)

// Notify delivers the event to every notifier.
func (m Multi) Notify(ctx context.Context, event Event) {
	for _, n := range m {
		n.Notify(ctx, event)
	}
}
