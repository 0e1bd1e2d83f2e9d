package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", point{Min: 1, Max: 2}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got point
	if err := c.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Min != 1 || got.Max != 2 {
		t.Fatalf("unexpected value %+v", got)
	}
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	var s string
	if err := c.Get(ctx, "absent", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	_ = c.Set(ctx, "short", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)
	if err := c.Get(ctx, "short", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired miss, got %v", err)
	}
	if ok, _ := c.Exists(ctx, "short"); ok {
		t.Fatalf("expired key reported as existing")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "a", "1", time.Minute)
	time.Sleep(time.Millisecond)
	_ = c.Set(ctx, "b", "2", time.Minute)
	time.Sleep(time.Millisecond)
	var s string
	_ = c.Get(ctx, "a", &s)
	time.Sleep(time.Millisecond)
	_ = c.Set(ctx, "c", "3", time.Minute)

	if ok, _ := c.Exists(ctx, "b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if ok, _ := c.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("expected a and c to survive")
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	if got := GenerateKeyWithParams("range", "AAPL", 5); got != "range:AAPL:5" {
		t.Fatalf("unexpected key %q", got)
	}
}
