package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/services/forecast"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"

	"github.com/google/uuid"
)

// RetrainJobType is the queue message type carrying a models.SeriesKey.
const RetrainJobType = "forecast.retrain"

// JobQueue accepts fire-and-forget jobs. It must not block.
type JobQueue interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

type ForecastConfig struct {
	TrainingLookback time.Duration
	TrainingLimit    int
	Hyperparameters  models.Hyperparameters
}

// ForecastPipeline ties ingestion, prediction and background retraining
// together for every series key.
type ForecastPipeline struct {
	cfg       ForecastConfig
	store     drepo.TickStore
	ranges    *forecast.RangeCache
	windower  *forecast.Windower
	coord     *forecast.TrainingCoordinator
	predictor *forecast.Predictor
	trainer   service.Trainer
	models    service.ModelStore
	events    drepo.EventPublisher
	metrics   drepo.Metrics
	queue     JobQueue
	logger    *applogger.Logger
	now       func() time.Time
}

type ForecastDeps struct {
	Store     drepo.TickStore
	Ranges    *forecast.RangeCache
	Windower  *forecast.Windower
	Coord     *forecast.TrainingCoordinator
	Predictor *forecast.Predictor
	Trainer   service.Trainer
	Models    service.ModelStore
	Events    drepo.EventPublisher
	Metrics   drepo.Metrics
	Queue     JobQueue
	Logger    *applogger.Logger
}

func NewForecastPipeline(cfg ForecastConfig, d ForecastDeps) *ForecastPipeline {
	if d.Logger == nil {
		d.Logger = applogger.NewNop()
	}
	if cfg.TrainingLimit <= 0 {
		cfg.TrainingLimit = 10000
	}
	p := &ForecastPipeline{
		cfg:       cfg,
		store:     d.Store,
		ranges:    d.Ranges,
		windower:  d.Windower,
		coord:     d.Coord,
		predictor: d.Predictor,
		trainer:   d.Trainer,
		models:    d.Models,
		events:    d.Events,
		metrics:   d.Metrics,
		queue:     d.Queue,
		logger:    d.Logger.Named("forecast"),
		now:       time.Now,
	}
	p.predictor.SetRetrain(p.RequestRetrain)
	return p
}

// Ingest normalizes t against the freshly recomputed range of its series
// and stores it. Ticks whose normalized value is unusable are dropped
// without an error.
func (p *ForecastPipeline) Ingest(ctx context.Context, t models.Tick) error {
	start := time.Now()
	key := t.Key()
	t.Symbol = key.Symbol

	r, err := p.ranges.Recompute(ctx, key, t)
	if err != nil {
		p.metrics.RecordError("range")
		return fmt.Errorf("recompute range for %s: %w", key, err)
	}

	n := forecast.Normalize(t.Close, r)
	if !forecast.Storable(n) {
		p.metrics.RecordTickRejected("normalized_out_of_range")
		p.logger.Debug("tick rejected",
			applogger.String("key", key.String()),
			applogger.Float64("close", t.Close),
			applogger.Float64("min", r.Min),
			applogger.Float64("max", r.Max))
		return nil
	}

	if err := p.store.Save(ctx, t.WithNormalized(n)); err != nil {
		p.metrics.RecordError("store")
		return fmt.Errorf("save tick %s: %w", key, err)
	}

	p.metrics.RecordTickIngested(key.String())
	p.metrics.RecordLastPrice(key.Symbol, t.Close)
	p.metrics.RecordLatency("ingest", time.Since(start).Seconds())
	return nil
}

// Predict returns the forecast price for key, 0 when nothing is known yet.
func (p *ForecastPipeline) Predict(ctx context.Context, key models.SeriesKey) float64 {
	start := time.Now()
	v := p.predictor.Predict(ctx, key)
	p.metrics.RecordPrediction(key.String(), v)
	p.metrics.RecordLatency("predict", time.Since(start).Seconds())
	return v
}

// RequestRetrain queues a retrain of key. A full queue drops the request.
func (p *ForecastPipeline) RequestRetrain(key models.SeriesKey) {
	if p.queue == nil {
		return
	}
	err := p.queue.Enqueue(context.Background(), RetrainJobType, key)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrQueueFull):
		p.metrics.RecordRetrain("dropped")
		p.logger.Warn("retrain dropped, queue full", applogger.String("key", key.String()))
	default:
		p.metrics.RecordRetrain("dropped")
		p.logger.Warn("retrain enqueue failed", applogger.String("key", key.String()), applogger.Error(err))
	}
}

// Retrain fits a new model for key from its stored history unless a run
// for key is already in flight.
func (p *ForecastPipeline) Retrain(ctx context.Context, key models.SeriesKey) error {
	if p.coord.TryBegin(key, p.now()) == forecast.AlreadyRunning {
		p.metrics.RecordRetrain("already_running")
		return nil
	}
	defer p.coord.End(key)

	start := p.now()
	tr := drepo.Lookback(start, p.cfg.TrainingLookback)
	ticks, err := p.store.QueryOrdered(ctx, key, tr, p.cfg.TrainingLimit)
	if err != nil {
		p.metrics.RecordRetrain("error")
		return fmt.Errorf("load training ticks for %s: %w", key, err)
	}

	samples := p.windower.BuildSamples(forecast.NormalizedSeries(ticks))
	if len(samples) == 0 {
		p.metrics.RecordRetrain("no_samples")
		return nil
	}

	model, stats, err := p.trainer.Train(ctx, samples, p.cfg.Hyperparameters)
	ev := models.TrainingEvent{
		RunID:      uuid.NewString(),
		Key:        key.String(),
		Samples:    len(samples),
		Iterations: stats.Iterations,
		FinalError: stats.FinalError,
		Duration:   time.Since(start),
		FinishedAt: p.now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
		p.publish(ctx, ev)
		p.metrics.RecordRetrain("error")
		return fmt.Errorf("train %s: %w", key, err)
	}

	p.predictor.Install(key, model)
	if p.models != nil {
		if err := p.models.Save(ctx, key, model); err != nil {
			p.metrics.RecordError("model_save")
			p.logger.Error("model save failed", applogger.String("key", key.String()), applogger.Error(err))
		}
	}

	p.publish(ctx, ev)
	p.metrics.RecordRetrain("ok")
	p.metrics.RecordLatency("retrain", ev.Duration.Seconds())
	p.logger.Info("model retrained",
		applogger.String("key", ev.Key),
		applogger.String("run_id", ev.RunID),
		applogger.Int("samples", ev.Samples),
		applogger.Int("iterations", ev.Iterations),
		applogger.Float64("final_error", ev.FinalError),
		applogger.Duration("took", ev.Duration))
	return nil
}

func (p *ForecastPipeline) publish(ctx context.Context, ev models.TrainingEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishTrainingEvent(ctx, ev); err != nil {
		p.logger.Warn("training event publish failed", applogger.String("key", ev.Key), applogger.Error(err))
	}
}

// RetrainJob runs ForecastPipeline.Retrain on the worker queue.
type RetrainJob struct {
	pipeline *ForecastPipeline
}

func NewRetrainJob(p *ForecastPipeline) *RetrainJob { return &RetrainJob{pipeline: p} }

func (j *RetrainJob) Name() string { return "retrain" }

func (j *RetrainJob) Type() string { return RetrainJobType }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	key, err := queue.ParsePayload[models.SeriesKey](payload)
	if err != nil {
		return err
	}
	return j.pipeline.Retrain(ctx, *key)
}

var _ queue.Job = (*RetrainJob)(nil)
