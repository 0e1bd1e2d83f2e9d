package forecast

import (
	"context"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/repository"
	"FinCast/pkg/cache"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func saveCloses(t *testing.T, s *repository.MemoryTickStore, symbol string, closes ...float64) {
	t.Helper()
	for i, c := range closes {
		err := s.Save(context.Background(), models.Tick{
			Symbol:    symbol,
			Timestamp: now.Add(-time.Duration(len(closes)-i) * time.Hour),
			Close:     c,
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
}

func TestRecomputeUsesStoreBounds(t *testing.T) {
	store := repository.NewMemoryTickStore()
	saveCloses(t, store, "AAPL", 100, 120, 90)
	rc := NewRangeCache(store, 2*365*24*time.Hour, WithRangeClock(clock))
	key := models.NewSeriesKey("AAPL", 0)

	r, err := rc.Recompute(context.Background(), key, models.Tick{Low: 1, High: 2})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if r.Min != 90 || r.Max != 120 {
		t.Fatalf("expected (90, 120), got %+v", r)
	}
	got, ok := rc.Get(context.Background(), key)
	if !ok || got != r {
		t.Fatalf("expected cached range %+v, got %+v ok=%v", r, got, ok)
	}
}

func TestRecomputeFallsBackOnEmptyHistory(t *testing.T) {
	rc := NewRangeCache(repository.NewMemoryTickStore(), time.Hour, WithRangeClock(clock))
	r, err := rc.Recompute(context.Background(), models.NewSeriesKey("NEW", 0), models.Tick{Low: 9, High: 11})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if r.Min != 9 || r.Max != 11 {
		t.Fatalf("expected tick bounds (9, 11), got %+v", r)
	}
}

func TestRecomputeFallsBackOnFlatHistory(t *testing.T) {
	store := repository.NewMemoryTickStore()
	saveCloses(t, store, "FLAT", 50, 50, 50)
	rc := NewRangeCache(store, 24*time.Hour, WithRangeClock(clock))

	r, _ := rc.Recompute(context.Background(), models.NewSeriesKey("FLAT", 0), models.Tick{Low: 49, High: 51})
	if r.Min != 49 || r.Max != 51 {
		t.Fatalf("expected tick bounds (49, 51), got %+v", r)
	}
}

func TestRecomputeIgnoresHistoryOutsideLookback(t *testing.T) {
	store := repository.NewMemoryTickStore()
	_ = store.Save(context.Background(), models.Tick{Symbol: "OLD", Timestamp: now.Add(-48 * time.Hour), Close: 1})
	_ = store.Save(context.Background(), models.Tick{Symbol: "OLD", Timestamp: now.Add(-47 * time.Hour), Close: 1000})
	rc := NewRangeCache(store, 24*time.Hour, WithRangeClock(clock))

	r, _ := rc.Recompute(context.Background(), models.NewSeriesKey("OLD", 0), models.Tick{Low: 10, High: 20})
	if r.Min != 10 || r.Max != 20 {
		t.Fatalf("expected fallback, got %+v", r)
	}
}

func TestRecomputeOverwrites(t *testing.T) {
	rc := NewRangeCache(repository.NewMemoryTickStore(), time.Hour, WithRangeClock(clock))
	key := models.NewSeriesKey("X", 0)
	ctx := context.Background()

	rc.Set(ctx, key, models.NormalizationRange{Min: 1, Max: 1000})
	r, _ := rc.Recompute(ctx, key, models.Tick{Low: 5, High: 6})
	if r.Min != 5 || r.Max != 6 {
		t.Fatalf("expected overwrite without merging, got %+v", r)
	}
}

func TestResolveRangePerBound(t *testing.T) {
	r := ResolveRange(0, 12, models.Tick{Low: 3, High: 4})
	if r.Min != 3 || r.Max != 12 {
		t.Fatalf("expected min fallback only, got %+v", r)
	}
}

func TestMirrorServesColdCache(t *testing.T) {
	mirror := cache.NewMemoryCache()
	defer mirror.Close()
	ctx := context.Background()
	key := models.NewSeriesKey("AAPL", 5)

	warm := NewRangeCache(repository.NewMemoryTickStore(), time.Hour, WithMirror(mirror, time.Hour))
	warm.Set(ctx, key, models.NormalizationRange{Min: 10, Max: 20})

	cold := NewRangeCache(repository.NewMemoryTickStore(), time.Hour, WithMirror(mirror, time.Hour))
	r, ok := cold.Get(ctx, key)
	if !ok || r.Min != 10 || r.Max != 20 {
		t.Fatalf("expected mirrored range, got %+v ok=%v", r, ok)
	}
	if _, ok := cold.Get(ctx, models.NewSeriesKey("AAPL", 1)); ok {
		t.Fatalf("unexpected range for other timeframe")
	}
}
