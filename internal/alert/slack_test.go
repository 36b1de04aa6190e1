package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestSlackNotifierPostsEvent(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, discardLogger())
	n.Notify(context.Background(), Event{
		Severity: SeverityCritical,
		TraderID: "t1",
		Symbol:   "BTCUSDT",
		Title:    "trader halted",
		Message:  "reconciliation found drift",
	})

	assert.Contains(t, got.Text, "CRITICAL")
	assert.Contains(t, got.Text, "trader halted")
	assert.Contains(t, got.Text, "t1")
}

func TestSlackNotifierSwallowsFailure(t *testing.T) {
	n := NewSlackNotifier("http://127.0.0.1:0/unreachable", discardLogger())

	// Must not panic or block the caller.
	n.Notify(context.Background(), Event{Severity: SeverityInfo, Title: "ok"})
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	Multi{a, b}.Notify(context.Background(), Event{Title: "x"})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
