package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/repository"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/nnet"
	"FinCast/pkg/metrics"
	"FinCast/pkg/queue"

	"github.com/prometheus/client_golang/prometheus"
)

type recordingQueue struct {
	mu   sync.Mutex
	keys []models.SeriesKey
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if msgType == RetrainJobType {
		q.keys = append(q.keys, payload.(models.SeriesKey))
	}
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.keys)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.TrainingEvent
}

func (e *recordingEvents) PublishTrainingEvent(_ context.Context, ev models.TrainingEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEvents) Close() error { return nil }

type countingTrainer struct {
	service.Trainer
	calls int
}

func (t *countingTrainer) Train(ctx context.Context, s []models.TrainingSample, hp models.Hyperparameters) (service.Model, models.TrainingStats, error) {
	t.calls++
	return t.Trainer.Train(ctx, s, hp)
}

type fixture struct {
	pipe    *ForecastPipeline
	store   *repository.MemoryTickStore
	coord   *forecast.TrainingCoordinator
	pred    *forecast.Predictor
	queue   *recordingQueue
	events  *recordingEvents
	trainer *countingTrainer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryTickStore()
	ranges := forecast.NewRangeCache(store, 24*time.Hour)
	trainer := &countingTrainer{Trainer: nnet.NewTrainer(3, nnet.WithSeed(7))}
	pred := forecast.NewPredictor(ranges, trainer, nil, nil)
	coord := forecast.NewTrainingCoordinator(10*time.Minute, nil)
	q := &recordingQueue{}
	ev := &recordingEvents{}

	p := NewForecastPipeline(ForecastConfig{
		TrainingLookback: 24 * time.Hour,
		TrainingLimit:    100,
		Hyperparameters:  models.Hyperparameters{MaxIterations: 50, LearningRate: 0.5, MaxError: 1e-5},
	}, ForecastDeps{
		Store:     store,
		Ranges:    ranges,
		Windower:  forecast.NewWindower(3),
		Coord:     coord,
		Predictor: pred,
		Trainer:   trainer,
		Events:    ev,
		Metrics:   metrics.NewWithRegisterer(prometheus.NewRegistry()),
		Queue:     q,
	})
	return &fixture{pipe: p, store: store, coord: coord, pred: pred, queue: q, events: ev, trainer: trainer}
}

func forecastRange() drepo.TimeRange {
	return drepo.Lookback(time.Now(), 24*time.Hour)
}

func tick(sym string, at time.Time, close float64) models.Tick {
	return models.Tick{Symbol: sym, Timestamp: at, Open: close, High: close + 1, Low: close - 1, Close: close}
}

func TestIngestFirstTickUsesOwnLowHigh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tk := tick("AAPL", time.Now().Add(-time.Minute), 100)
	tk.Low, tk.High = 90, 110
	if err := f.pipe.Ingest(ctx, tk); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	got, err := f.store.QueryOrdered(ctx, tk.Key(), forecastRange(), 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one stored tick, got %d (%v)", len(got), err)
	}
	if got[0].Normalized == nil || math.Abs(*got[0].Normalized-0.5) > 1e-9 {
		t.Fatalf("normalized = %v, want 0.5", got[0].Normalized)
	}
}

func TestIngestStoresCanonicalSymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.pipe.Ingest(ctx, tick(" msft ", time.Now().Add(-time.Minute), 100)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	got, err := f.store.QueryOrdered(ctx, models.NewSeriesKey("MSFT", 0), forecastRange(), 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one stored tick under MSFT, got %d (%v)", len(got), err)
	}
	if got[0].Symbol != "MSFT" {
		t.Fatalf("stored symbol %q, want MSFT", got[0].Symbol)
	}
}

func TestIngestRejectsUnstorableValue(t *testing.T) {
	f := newFixture(t)

	// flat zero range gives 0/0
	tk := models.Tick{Symbol: "ZERO", Timestamp: time.Now()}
	if err := f.pipe.Ingest(context.Background(), tk); err != nil {
		t.Fatalf("rejection must not surface as error: %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("rejected tick was stored")
	}
}

func TestPredictUnseenDoesNotRetrain(t *testing.T) {
	f := newFixture(t)

	if v := f.pipe.Predict(context.Background(), models.NewSeriesKey("NOPE", 0)); v != 0 {
		t.Fatalf("expected 0, got %v", v)
	}
	if f.queue.count() != 0 {
		t.Fatalf("unseen key must not enqueue a retrain")
	}
}

func TestPredictSeenRequestsRetrain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.pipe.Ingest(ctx, tick("MSFT", time.Now(), 50)); err != nil {
		t.Fatal(err)
	}

	v := f.pipe.Predict(ctx, models.NewSeriesKey("msft", 0))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		t.Fatalf("prediction not finite: %v", v)
	}
	if f.queue.count() != 1 {
		t.Fatalf("expected one retrain request, got %d", f.queue.count())
	}
}

func TestRequestRetrainFullQueueIsDropped(t *testing.T) {
	f := newFixture(t)
	f.queue.err = queue.ErrQueueFull

	f.pipe.RequestRetrain(models.NewSeriesKey("AAPL", 0))
	if f.queue.count() != 0 {
		t.Fatal("nothing should be recorded")
	}
}

func TestRetrainEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := models.NewSeriesKey("AAPL", 0)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		if err := f.pipe.Ingest(ctx, tick("AAPL", base.Add(time.Duration(i)*time.Minute), 100+float64(i%4))); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	if err := f.pipe.Retrain(ctx, key); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if _, ok := f.pred.Model(key); !ok {
		t.Fatal("trained model not installed")
	}
	if f.coord.Held(key) {
		t.Fatal("lock not released after retrain")
	}
	if len(f.events.events) != 1 || f.events.events[0].RunID == "" || f.events.events[0].Samples == 0 {
		t.Fatalf("unexpected events: %+v", f.events.events)
	}

	v := f.pipe.Predict(ctx, key)
	if v < 90 || v > 120 {
		t.Fatalf("prediction %v outside a plausible band", v)
	}
}

func TestRetrainWithoutSamplesReleasesLock(t *testing.T) {
	f := newFixture(t)
	key := models.NewSeriesKey("EMPTY", 0)

	if err := f.pipe.Retrain(context.Background(), key); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if f.coord.Held(key) {
		t.Fatal("lock leaked on the no-sample path")
	}
	if f.trainer.calls != 0 {
		t.Fatal("trainer must not run without samples")
	}
	if len(f.events.events) != 0 {
		t.Fatal("no event expected without samples")
	}
}

func TestRetrainSkipsWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := models.NewSeriesKey("AAPL", 0)
	for i := 0; i < 6; i++ {
		_ = f.pipe.Ingest(ctx, tick("AAPL", time.Now().Add(-time.Duration(10-i)*time.Minute), 10+float64(i)))
	}

	if f.coord.TryBegin(key, time.Now()) != forecast.Granted {
		t.Fatal("setup: lock not granted")
	}
	if err := f.pipe.Retrain(ctx, key); err != nil {
		t.Fatal(err)
	}
	if f.trainer.calls != 0 {
		t.Fatal("second retrain ran while the first held the lock")
	}
	if !f.coord.Held(key) {
		t.Fatal("refused retrain must not release someone else's lock")
	}
}

func TestRetrainJobParsesPayload(t *testing.T) {
	f := newFixture(t)
	job := NewRetrainJob(f.pipe)

	if err := job.Handle(context.Background(), models.NewSeriesKey("EMPTY", 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := job.Handle(context.Background(), map[string]interface{}{"symbol": "EMPTY"}); err != nil {
		t.Fatalf("handle map payload: %v", err)
	}
	if err := job.Handle(context.Background(), 42); err == nil {
		t.Fatal("expected error for bad payload")
	}
}

func TestRetrainRunsOnWorkerQueue(t *testing.T) {
	f := newFixture(t)
	wq := queue.NewWorkerQueue(nil, &queue.QueueConfig{Workers: 1, QueueSize: 4})
	wq.RegisterJob(NewRetrainJob(f.pipe))
	if err := wq.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = wq.Stop(context.Background()) }()
	f.pipe.queue = wq

	ctx := context.Background()
	key := models.NewSeriesKey("QQQ", 0)
	for i := 0; i < 6; i++ {
		_ = f.pipe.Ingest(ctx, tick("QQQ", time.Now().Add(-time.Duration(10-i)*time.Minute), 20+float64(i)))
	}
	f.pipe.Predict(ctx, key)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := f.pred.Model(key); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("retrain job never installed a model")
}

func TestEnqueueErrorIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("closed")
	f.pipe.RequestRetrain(models.NewSeriesKey("AAPL", 0))
}
