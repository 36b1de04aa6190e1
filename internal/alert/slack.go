package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// SlackNotifier posts alerts to a Slack incoming webhook. Failures are
// logged and swallowed.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	log        *logrus.Entry
}

// NewSlackNotifier creates a SlackNotifier.
func NewSlackNotifier(webhookURL string, log *logrus.Entry) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Compile-time interface check.
var _ Notifier = (*SlackNotifier)(nil)

type slackPayload struct {
	Text string `json:"text"`
}

// Notify posts the event as a webhook message.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) {
	text := fmt.Sprintf("[%s] %s", event.Severity, event.Title)
	if event.TraderID != "" {
		text += fmt.Sprintf(" (trader=%s symbol=%s)", event.TraderID, event.Symbol)
	}
	if event.Message != "" {
		text += "\n" + event.Message
	}

	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		n.log.WithError(err).Warn("marshal slack payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.log.WithError(err).Warn("build slack request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.WithError(err).Warn("deliver slack alert")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.log.WithField("status", resp.StatusCode).Warn("slack webhook returned non-200")
	}
}
