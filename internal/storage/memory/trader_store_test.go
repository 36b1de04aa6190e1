package memory

import (
	"context"
	"errors"
	"testing"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/storage"
)

func testTrader(id string) *domain.TraderRecord {
	return &domain.TraderRecord{
		ID:               id,
		Symbol:           "BTCUSDT",
		Strategy:         domain.DefaultStrategyConfig(),
		AllocatedBudget:  1000,
		InvestmentAmount: 100,
		Active:           true,
	}
}

func TestTraderStore_InsertAndGet(t *testing.T) {
	store := NewTraderStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testTrader("t1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Symbol != "BTCUSDT" || !got.Active {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestTraderStore_DuplicateKey(t *testing.T) {
	store := NewTraderStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testTrader("t1")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, testTrader("t1")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTraderStore_NotFound(t *testing.T) {
	store := NewTraderStore()

	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTraderStore_SetActive(t *testing.T) {
	store := NewTraderStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testTrader("t1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.SetActive(ctx, "t1", false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Active {
		t.Error("trader should be inactive")
	}

	if err := store.SetActive(ctx, "missing", true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTraderStore_AddPnL(t *testing.T) {
	store := NewTraderStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testTrader("t1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.AddPnL(ctx, "t1", 25); err != nil {
		t.Fatalf("AddPnL failed: %v", err)
	}
	if err := store.AddPnL(ctx, "t1", -40); err != nil {
		t.Fatalf("AddPnL failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.TotalPnL != -15 {
		t.Errorf("TotalPnL mismatch: got %f, want -15", got.TotalPnL)
	}
}

func TestTraderStore_GetAllOrdered(t *testing.T) {
	store := NewTraderStore()
	ctx := context.Background()

	for _, id := range []string{"t3", "t1", "t2"} {
		if err := store.Insert(ctx, testTrader(id)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "t1" || all[2].ID != "t3" {
		t.Errorf("unexpected order: %v", all)
	}
}
