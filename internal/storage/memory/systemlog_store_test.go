package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

func testLogEntry(event string) *domain.SystemLog {
	return &domain.SystemLog{
		TraderID:  "t1",
		Level:     domain.LogLevelWarning,
		Component: domain.ComponentReconcile,
		Event:     event,
		Message:   "msg",
		CreatedAt: time.Now(),
	}
}

func TestSystemLogStore_NewestFirst(t *testing.T) {
	store := NewSystemLogStore()
	ctx := context.Background()

	for _, event := range []string{"first", "second", "third"} {
		if err := store.Insert(ctx, testLogEntry(event)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByTrader(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("GetByTrader failed: %v", err)
	}
	if len(got) != 3 || got[0].Event != "third" {
		t.Errorf("expected newest first, got %v", got)
	}
}

func TestSystemLogStore_Limit(t *testing.T) {
	store := NewSystemLogStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Insert(ctx, testLogEntry("e")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByTrader(ctx, "t1", 2)
	if err != nil {
		t.Fatalf("GetByTrader failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("limit not honored: got %d entries", len(got))
	}
}

func TestSystemLogStore_InvalidInput(t *testing.T) {
	store := NewSystemLogStore()

	entry := testLogEntry("e")
	entry.Component = ""
	if err := store.Insert(context.Background(), entry); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
