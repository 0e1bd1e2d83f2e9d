package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"

	_ "modernc.org/sqlite"
)

func newSQLiteStore(t *testing.T) *SQLTickStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewSQLTickStore(db, "ticks", SQLiteDialect, nil)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func seed(t *testing.T, s drepo.TickStore, base time.Time) {
	t.Helper()
	closes := []float64{105, 101, 110, 99, 104}
	for i, c := range closes {
		tick := models.Tick{
			Symbol:    "AAPL",
			TimeFrame: 1,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      c - 1,
			High:      c + 2,
			Low:       c - 2,
			Close:     c,
		}
		if i%2 == 0 {
			tick = tick.WithNormalized(float64(i) / 10)
		}
		if err := s.Save(context.Background(), tick); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	other := models.Tick{Symbol: "MSFT", TimeFrame: 1, Timestamp: base, Close: 1}
	if err := s.Save(context.Background(), other); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func stores(t *testing.T) map[string]drepo.TickStore {
	return map[string]drepo.TickStore{
		"memory": NewMemoryTickStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestTickStoreExtremes(t *testing.T) {
	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	tr := drepo.TimeRange{From: base.Add(-time.Hour), To: base.Add(time.Hour)}
	key := models.NewSeriesKey("AAPL", 1)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s, base)
			ctx := context.Background()

			lo, err := s.QueryExtreme(ctx, key, drepo.FieldClose, drepo.OrderMin, tr)
			if err != nil || lo == nil {
				t.Fatalf("min: %v %v", lo, err)
			}
			if lo.Close != 99 {
				t.Fatalf("expected min close 99, got %v", lo.Close)
			}
			hi, err := s.QueryExtreme(ctx, key, drepo.FieldClose, drepo.OrderMax, tr)
			if err != nil || hi == nil || hi.Close != 110 {
				t.Fatalf("expected max close 110, got %v %v", hi, err)
			}
			open, err := s.QueryExtreme(ctx, key, drepo.FieldOpen, drepo.OrderMax, tr)
			if err != nil || open == nil || open.Open != 109 {
				t.Fatalf("expected max open 109, got %v %v", open, err)
			}

			empty := drepo.TimeRange{From: base.Add(24 * time.Hour), To: base.Add(48 * time.Hour)}
			none, err := s.QueryExtreme(ctx, key, drepo.FieldClose, drepo.OrderMin, empty)
			if err != nil || none != nil {
				t.Fatalf("expected nil for empty range, got %v %v", none, err)
			}
			if _, err := s.QueryExtreme(ctx, key, drepo.Field("volume"), drepo.OrderMin, tr); err == nil {
				t.Fatalf("expected error for unsupported field")
			}
		})
	}
}

func TestTickStoreOrderedKeepsMostRecent(t *testing.T) {
	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	tr := drepo.TimeRange{From: base.Add(-time.Hour), To: base.Add(time.Hour)}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s, base)
			ticks, err := s.QueryOrdered(context.Background(), models.NewSeriesKey("AAPL", 0), tr, 3)
			if err != nil {
				t.Fatalf("ordered: %v", err)
			}
			if len(ticks) != 3 {
				t.Fatalf("expected 3 ticks, got %d", len(ticks))
			}
			want := []float64{110, 99, 104}
			for i, tk := range ticks {
				if tk.Close != want[i] {
					t.Fatalf("tick %d: expected close %v, got %v", i, want[i], tk.Close)
				}
			}
			if ticks[0].Normalized == nil || *ticks[0].Normalized != 0.2 {
				t.Fatalf("expected normalized 0.2 on first tick, got %v", ticks[0].Normalized)
			}
			if ticks[1].Normalized != nil {
				t.Fatalf("expected missing normalized value to stay nil")
			}
			if !ticks[2].Timestamp.Equal(base.Add(4 * time.Minute)) {
				t.Fatalf("timestamp not preserved: %v", ticks[2].Timestamp)
			}
		})
	}
}

func TestTickStoreSaveReplacesSameTimestamp(t *testing.T) {
	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	tr := drepo.TimeRange{From: base, To: base}
	key := models.NewSeriesKey("AAPL", 1)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.Save(ctx, models.Tick{Symbol: "AAPL", TimeFrame: 1, Timestamp: base, Close: 1})
			_ = s.Save(ctx, models.Tick{Symbol: "AAPL", TimeFrame: 1, Timestamp: base, Close: 2})

			ticks, err := s.QueryOrdered(ctx, key, tr, 0)
			if err != nil {
				t.Fatalf("ordered: %v", err)
			}
			if len(ticks) != 1 || ticks[0].Close != 2 {
				t.Fatalf("expected single replaced tick, got %+v", ticks)
			}
		})
	}
}

func TestDollarPlaceholders(t *testing.T) {
	got := dollarPlaceholders("a = ? AND b = ? LIMIT ?")
	if got != "a = $1 AND b = $2 LIMIT $3" {
		t.Fatalf("unexpected rebind %q", got)
	}
}

func TestReadSourcePerDialect(t *testing.T) {
	cases := []struct {
		dialect Dialect
		want    string
	}{
		{ClickHouseDialect, "ticks FINAL"},
		{PostgresDialect, "ticks"},
		{SQLiteDialect, "ticks"},
	}
	for _, c := range cases {
		s := NewSQLTickStore(nil, "ticks", c.dialect, nil)
		if got := s.source(); got != c.want {
			t.Fatalf("%s: expected %q, got %q", c.dialect.Name, c.want, got)
		}
	}
}
