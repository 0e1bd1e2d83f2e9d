package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

type payload struct {
	Symbol string `json:"symbol"`
}

func TestWorkerQueueRunsJobs(t *testing.T) {
	q := NewWorkerQueue(nil, &QueueConfig{Workers: 2, QueueSize: 8})
	var seen atomic.Int32
	q.RegisterJob(HandlerFunc{MsgType: "echo", Fn: func(_ context.Context, p interface{}) error {
		v, err := ParsePayload[payload](p)
		if err != nil || v.Symbol != "AAPL" {
			t.Errorf("unexpected payload %v %v", v, err)
		}
		seen.Add(1)
		return nil
	}})
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer q.Stop(context.Background())

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(context.Background(), "echo", payload{Symbol: "AAPL"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	waitFor(t, func() bool { return seen.Load() == 5 })
}

func TestWorkerQueueRejects(t *testing.T) {
	q := NewWorkerQueue(nil, &QueueConfig{Workers: 1, QueueSize: 1})
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q.RegisterJob(HandlerFunc{MsgType: "slow", Fn: func(ctx context.Context, _ interface{}) error {
		started <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}})

	if err := q.Enqueue(context.Background(), "slow", nil); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before start, got %v", err)
	}
	_ = q.Start()
	defer q.Stop(context.Background())

	if err := q.Enqueue(context.Background(), "other", nil); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}

	_ = q.Enqueue(context.Background(), "slow", nil)
	<-started
	if err := q.Enqueue(context.Background(), "slow", nil); err != nil {
		t.Fatalf("buffer slot should be free: %v", err)
	}
	if err := q.Enqueue(context.Background(), "slow", nil); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	close(block)
}

func TestWorkerQueueSurvivesPanicAndRetries(t *testing.T) {
	q := NewWorkerQueue(nil, &QueueConfig{Workers: 1, QueueSize: 4, RetryLimit: 1, RetryDelay: time.Millisecond})
	var calls atomic.Int32
	q.RegisterJob(HandlerFunc{MsgType: "flaky", Fn: func(context.Context, interface{}) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}})
	_ = q.Start()
	defer q.Stop(context.Background())

	_ = q.Enqueue(context.Background(), "flaky", nil)
	waitFor(t, func() bool { return calls.Load() == 2 })
}

func TestParsePayloadFromMap(t *testing.T) {
	v, err := ParsePayload[payload](map[string]interface{}{"symbol": "MSFT"})
	if err != nil || v.Symbol != "MSFT" {
		t.Fatalf("unexpected %v %v", v, err)
	}
	if _, err := ParsePayload[payload](42); err == nil {
		t.Fatalf("expected error for int payload")
	}
}
