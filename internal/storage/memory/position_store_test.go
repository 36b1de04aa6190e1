package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

func testPosition() *domain.Position {
	return &domain.Position{
		TraderID:   "t1",
		Symbol:     "BTCUSDT",
		Side:       domain.PositionLong,
		Size:       0.5,
		EntryPrice: 100,
		EntryTime:  time.Now(),
		Open:       true,
	}
}

func TestPositionStore_UpsertAndGetOpen(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, testPosition()); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetOpen(ctx, "t1", "BTCUSDT")
	if err != nil {
		t.Fatalf("GetOpen failed: %v", err)
	}
	if got.Side != domain.PositionLong || got.Size != 0.5 {
		t.Errorf("unexpected position: %+v", got)
	}
}

func TestPositionStore_UpsertReplaces(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, testPosition()); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	updated := testPosition()
	updated.Side = domain.PositionShort
	updated.Size = 0.25
	if err := store.Upsert(ctx, updated); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.GetOpen(ctx, "t1", "BTCUSDT")
	if err != nil {
		t.Fatalf("GetOpen failed: %v", err)
	}
	if got.Side != domain.PositionShort || got.Size != 0.25 {
		t.Errorf("upsert did not replace: %+v", got)
	}
}

func TestPositionStore_GetOpenNotFound(t *testing.T) {
	store := NewPositionStore()

	if _, err := store.GetOpen(context.Background(), "t1", "BTCUSDT"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPositionStore_Close(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, testPosition()); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Close(ctx, "t1", "BTCUSDT"); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := store.GetOpen(ctx, "t1", "BTCUSDT"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("closed position still open: %v", err)
	}
}

func TestPositionStore_CloseMissingIsNoop(t *testing.T) {
	store := NewPositionStore()

	if err := store.Close(context.Background(), "t1", "BTCUSDT"); err != nil {
		t.Errorf("closing a flat trader must not fail: %v", err)
	}
}
