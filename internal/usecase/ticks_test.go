package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/repository"
)

func TestGetTicksWindowAndLimit(t *testing.T) {
	store := repository.NewMemoryTickStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_ = store.Save(ctx, models.Tick{Symbol: "AAPL", Timestamp: base.Add(time.Duration(i) * time.Minute), Close: float64(i + 1)})
	}

	uc := NewTicksUseCase(store)
	res, err := uc.GetTicks(ctx, GetTicksParams{
		Key:   models.NewSeriesKey("aapl", 0),
		From:  base,
		To:    base.Add(time.Hour),
		Limit: 3,
	})
	if err != nil {
		t.Fatalf("get ticks: %v", err)
	}
	if res.Count != 3 {
		t.Fatalf("expected 3 ticks, got %d", res.Count)
	}
	if res.Ticks[0].Close != 8 || res.Ticks[2].Close != 10 {
		t.Fatalf("expected the most recent three ascending, got %+v", res.Ticks)
	}
}

func TestGetTicksRejectsInvertedRange(t *testing.T) {
	uc := NewTicksUseCase(repository.NewMemoryTickStore())
	now := time.Now()
	_, err := uc.GetTicks(context.Background(), GetTicksParams{
		Key:  models.NewSeriesKey("AAPL", 0),
		From: now,
		To:   now.Add(-time.Hour),
	})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestGetTicksEmptyIsNotNil(t *testing.T) {
	uc := NewTicksUseCase(repository.NewMemoryTickStore())
	res, err := uc.GetTicks(context.Background(), GetTicksParams{Key: models.NewSeriesKey("NONE", 0)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Ticks == nil || res.Count != 0 {
		t.Fatalf("unexpected %+v", res)
	}
}
