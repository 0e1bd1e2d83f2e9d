package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

type flakyIngester struct {
	mu    sync.Mutex
	fail  int
	calls int
	got   []models.Tick
}

func (f *flakyIngester) Ingest(_ context.Context, t models.Tick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail > 0 {
		f.fail--
		return errors.New("down")
	}
	f.got = append(f.got, t)
	return nil
}

func (f *flakyIngester) accepted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func newTestPipeline(next Ingester, opts ...PipelineOption) *RealtimePipeline {
	return NewRealtimePipeline(next, metrics.NewWithRegisterer(prometheus.NewRegistry()), opts...)
}

func validTick() models.Tick {
	return models.Tick{Symbol: "AAPL", Timestamp: time.Now(), Open: 1, High: 2, Low: 1, Close: 1.5}
}

func TestValidateTick(t *testing.T) {
	cases := map[string]func(*models.Tick){
		"empty symbol": func(tk *models.Tick) { tk.Symbol = "" },
		"no timestamp": func(tk *models.Tick) { tk.Timestamp = time.Time{} },
		"negative":     func(tk *models.Tick) { tk.Close = -1 },
		"high < low":   func(tk *models.Tick) { tk.High = 0.5 },
		"timeframe":    func(tk *models.Tick) { tk.TimeFrame = -5 },
	}
	for name, mutate := range cases {
		tk := validTick()
		mutate(&tk)
		if err := ValidateTick(tk); !errors.Is(err, ErrInvalidTick) {
			t.Errorf("%s: expected ErrInvalidTick, got %v", name, err)
		}
	}
	if err := ValidateTick(validTick()); err != nil {
		t.Fatalf("valid tick rejected: %v", err)
	}
}

func TestPipelineThrottlesPerKey(t *testing.T) {
	next := &flakyIngester{}
	p := newTestPipeline(next, WithMaxRPS(1))
	now := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return now }

	ctx := context.Background()
	_ = p.Ingest(ctx, validTick())
	_ = p.Ingest(ctx, validTick())
	other := validTick()
	other.Symbol = "MSFT"
	_ = p.Ingest(ctx, other)

	if got := next.accepted(); got != 2 {
		t.Fatalf("expected 2 accepted ticks, got %d", got)
	}

	now = now.Add(time.Second)
	_ = p.Ingest(ctx, validTick())
	if got := next.accepted(); got != 3 {
		t.Fatalf("expected throttle to lift after a second, got %d", got)
	}
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	next := &flakyIngester{fail: 1}
	p := newTestPipeline(next, WithMaxRPS(0), WithBufferSize(4))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Ingest(ctx, validTick()); err == nil {
		t.Fatal("expected downstream error to surface")
	}
	if p.Buffered() != 1 {
		t.Fatalf("expected tick buffered, got %d", p.Buffered())
	}

	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for next.accepted() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if next.accepted() != 1 {
		t.Fatal("buffered tick was never retried")
	}
}
