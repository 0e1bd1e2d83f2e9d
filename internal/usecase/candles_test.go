package usecase

import (
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

func trade(sym string, at time.Time, price, vol float64) *models.Trade {
	return &models.Trade{Symbol: sym, Timestamp: at, Price: price, Volume: vol}
}

func TestCandleBuilderEmitsOnePerBucket(t *testing.T) {
	b := NewCandleBuilder(5)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, p := range []float64{10, 12, 9, 11} {
		if _, ok := b.Add(trade("AAPL", base.Add(time.Duration(i)*time.Minute), p, 1)); ok {
			t.Fatalf("bucket closed early at trade %d", i)
		}
	}

	c, ok := b.Add(trade("AAPL", base.Add(5*time.Minute), 13, 2))
	if !ok {
		t.Fatal("expected the first bucket to close")
	}
	want := models.Tick{Symbol: "AAPL", TimeFrame: 5, Timestamp: base, Open: 10, High: 12, Low: 9, Close: 11, Volume: 4}
	if c.Symbol != want.Symbol || c.TimeFrame != want.TimeFrame || !c.Timestamp.Equal(want.Timestamp) ||
		c.Open != want.Open || c.High != want.High || c.Low != want.Low || c.Close != want.Close || c.Volume != want.Volume {
		t.Fatalf("got %+v, want %+v", c, want)
	}
}

func TestCandleBuilderDropsLateTrades(t *testing.T) {
	b := NewCandleBuilder(1)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	b.Add(trade("AAPL", base.Add(2*time.Minute), 10, 1))
	if _, ok := b.Add(trade("AAPL", base, 99, 1)); ok {
		t.Fatal("late trade must not close a bucket")
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d", b.Dropped())
	}
}

func TestCandleBuilderFlush(t *testing.T) {
	b := NewCandleBuilder(1)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	b.Add(trade("AAPL", base.Add(10*time.Second), 10, 1))
	b.Add(trade("MSFT", base.Add(70*time.Second), 20, 1))

	if got := b.Flush(base.Add(30 * time.Second)); len(got) != 0 {
		t.Fatalf("nothing should be complete yet, got %d", len(got))
	}
	got := b.Flush(base.Add(time.Minute))
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Fatalf("expected AAPL flushed, got %+v", got)
	}
	if got := b.Flush(base.Add(2 * time.Minute)); len(got) != 1 || got[0].Symbol != "MSFT" {
		t.Fatalf("expected MSFT flushed, got %+v", got)
	}
}
