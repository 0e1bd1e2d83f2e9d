package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestHookChainOrder(t *testing.T) {
	var calls []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				calls = append(calls, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				calls = append(calls, "after:"+name)
			},
		}
	}

	chain := NewHookChain(mk("a"), nil, mk("b"))
	ctx, km, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if string(data) != "ab" {
		t.Fatalf("payload not threaded: %q", data)
	}
	chain.AfterHandle(ctx, "t", km, data, nil)

	want := []string{"before:a", "before:b", "after:b", "after:a"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestHookChainRecoversPanic(t *testing.T) {
	var onErr error
	chain := NewHookChain(
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		}},
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { onErr = err }},
	)

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("expected ERR_PANIC, got %v", err)
	}
	if onErr == nil {
		t.Fatal("OnError not called")
	}
}

func TestTraceHook(t *testing.T) {
	h := TraceHook()

	km := kafka.Message{Headers: []kafka.Header{{Key: TraceHeader, Value: []byte("abc")}}}
	ctx, _, _, err := h.BeforeHandle(context.Background(), "t", km, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := TraceIDFrom(ctx); got != "abc" {
		t.Fatalf("trace id = %q", got)
	}
	if _, ok := ctx.Value(CtxStartTime).(time.Time); !ok {
		t.Fatal("start time missing")
	}

	ctx, _, _, _ = h.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	if TraceIDFrom(ctx) == "" {
		t.Fatal("expected generated trace id")
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 100*time.Millisecond
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: %v out of range", attempt, d)
		}
	}
}
