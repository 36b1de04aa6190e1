package memory

import (
	"context"
	"testing"

	"binance-trade-engine/internal/domain"
)

func testSnapshot(openTime int64, sufficient bool) *domain.IndicatorSnapshot {
	return &domain.IndicatorSnapshot{
		Symbol:     "BTCUSDT",
		OpenTime:   openTime,
		Close:      100,
		MACDLine:   0.5,
		MACDSignal: 0.4,
		ATR:        1.2,
		Sufficient: sufficient,
	}
}

func TestIndicatorStore_GetRecentFiltersInsufficient(t *testing.T) {
	store := NewIndicatorStore()
	ctx := context.Background()

	snaps := []*domain.IndicatorSnapshot{
		testSnapshot(barT0, false),
		testSnapshot(barT0+domain.BarIntervalMs, true),
		testSnapshot(barT0+2*domain.BarIntervalMs, true),
	}
	if err := store.InsertBulk(ctx, snaps); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetRecent(ctx, "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sufficient snapshots, got %d", len(got))
	}
	if got[0].OpenTime != barT0+domain.BarIntervalMs {
		t.Errorf("expected ascending order, got %v", got)
	}
}

func TestIndicatorStore_DuplicatesSkipped(t *testing.T) {
	store := NewIndicatorStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.IndicatorSnapshot{testSnapshot(barT0, true)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	dup := testSnapshot(barT0, true)
	dup.ATR = 999
	if err := store.InsertBulk(ctx, []*domain.IndicatorSnapshot{dup}); err != nil {
		t.Fatalf("duplicate InsertBulk failed: %v", err)
	}

	got, err := store.GetRecent(ctx, "BTCUSDT", 1)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(got) != 1 || got[0].ATR != 1.2 {
		t.Errorf("duplicate was not skipped: %v", got)
	}
}
