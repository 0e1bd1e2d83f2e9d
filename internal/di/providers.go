package di

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/handler/api"
	mid "FinCast/internal/middleware"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/service/finnhub"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/nnet"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/postgres"
	"FinCast/pkg/queue"
	"FinCast/pkg/server"
	"FinCast/pkg/sqlite"
)

const ticksTable = "ticks"

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

func ProvideKafkaEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) *internalrepo.KafkaEventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideEventPublisher falls back to a no-op publisher without Kafka.
func ProvideEventPublisher(kp *internalrepo.KafkaEventPublisher) repository.EventPublisher {
	if kp == nil {
		return internalrepo.NopEventPublisher{}
	}
	return kp
}

// ProvideLogger builds the root logger. With Kafka available, error logs are
// aggregated and shipped to the logs topic.
func ProvideLogger(cfg *config.Config, kp *internalrepo.KafkaEventPublisher) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if kp == nil || cfg.Kafka.LogsTopic == "" {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		PublishTimeout: 5 * time.Second,
		Topic:          cfg.Kafka.LogsTopic,
		Publisher:      kp,
	})
	return l, l.RemoveCollector, nil
}

func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTickStore opens the configured backend and ensures its schema.
func ProvideTickStore(cfg *config.Config, l *applogger.Logger) (repository.TickStore, func(), error) {
	var (
		store   repository.TickStore
		cleanup = func() {}
	)

	switch cfg.Backend.Type {
	case config.BackendClickHouse:
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store = internalrepo.NewSQLTickStore(client.DB(), ticksTable, internalrepo.ClickHouseDialect, l.Named("store"))
		cleanup = func() { _ = client.Close() }
	case config.BackendPostgres:
		client, err := postgres.NewClient(
			postgres.WithDSN(cfg.Postgres.DSN),
			postgres.WithMaxConnections(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnLifetime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres client: %w", err)
		}
		store = internalrepo.NewSQLTickStore(client.DB(), ticksTable, internalrepo.PostgresDialect, l.Named("store"))
		cleanup = func() { _ = client.Close() }
	case config.BackendSQLite:
		client, err := sqlite.NewClient(
			sqlite.WithPath(cfg.SQLite.Path),
			sqlite.WithBusyTimeout(cfg.SQLite.BusyTimeout),
			sqlite.WithLogger(l),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite client: %w", err)
		}
		store = internalrepo.NewSQLTickStore(client.DB(), ticksTable, internalrepo.SQLiteDialect, l.Named("store"))
		cleanup = func() { _ = client.Close() }
	case config.BackendMemory, "":
		store = internalrepo.NewMemoryTickStore()
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend.Type)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("tick store init: %w", err)
	}
	return store, cleanup, nil
}

// ProvideRangeMirror returns the Redis mirror for normalization ranges, or
// nil when Redis is disabled.
func ProvideRangeMirror(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

func ProvideRangeCache(cfg *config.Config, store repository.TickStore, mirror cache.Service, l *applogger.Logger) *forecast.RangeCache {
	opts := []forecast.RangeOption{forecast.WithRangeLogger(l.Named("ranges"))}
	if mirror != nil {
		opts = append(opts, forecast.WithMirror(mirror, cfg.Redis.RangeTTL))
	}
	return forecast.NewRangeCache(store, cfg.Forecast.RangeLookback, opts...)
}

func ProvideTrainer(cfg *config.Config) *nnet.Trainer {
	var opts []nnet.Option
	if cfg.Forecast.HiddenUnits > 0 {
		opts = append(opts, nnet.WithHiddenUnits(cfg.Forecast.HiddenUnits))
	}
	return nnet.NewTrainer(cfg.Forecast.WindowSize, opts...)
}

func ProvideModelStore(cfg *config.Config, trainer *nnet.Trainer) (service.ModelStore, error) {
	store, err := internalrepo.NewFileModelStore(cfg.Forecast.ModelDir, trainer.Decode)
	if err != nil {
		return nil, fmt.Errorf("model store: %w", err)
	}
	return store, nil
}

func ProvidePredictor(ranges *forecast.RangeCache, trainer *nnet.Trainer, ms service.ModelStore, l *applogger.Logger) *forecast.Predictor {
	return forecast.NewPredictor(ranges, trainer, ms, l)
}

func ProvideWorkerQueue(cfg *config.Config, l *applogger.Logger) *queue.WorkerQueue {
	return queue.NewWorkerQueue(l.Named("queue"), &queue.QueueConfig{
		Workers:   cfg.Forecast.Workers,
		QueueSize: cfg.Forecast.QueueSize,
	})
}

// ProvideForecastPipeline builds the pipeline and registers its retrain job
// on the worker queue.
func ProvideForecastPipeline(
	cfg *config.Config,
	store repository.TickStore,
	ranges *forecast.RangeCache,
	predictor *forecast.Predictor,
	trainer *nnet.Trainer,
	ms service.ModelStore,
	events repository.EventPublisher,
	m repository.Metrics,
	q *queue.WorkerQueue,
	l *applogger.Logger,
) *usecase.ForecastPipeline {
	p := usecase.NewForecastPipeline(
		usecase.ForecastConfig{
			TrainingLookback: cfg.Forecast.TrainingLookback,
			TrainingLimit:    cfg.Forecast.TrainingLimit,
			Hyperparameters:  hyperparameters(cfg),
		},
		usecase.ForecastDeps{
			Store:     store,
			Ranges:    ranges,
			Windower:  forecast.NewWindower(cfg.Forecast.WindowSize),
			Coord:     forecast.NewTrainingCoordinator(cfg.Forecast.MaxTrainingDuration, l),
			Predictor: predictor,
			Trainer:   trainer,
			Models:    ms,
			Events:    events,
			Metrics:   m,
			Queue:     q,
			Logger:    l,
		},
	)
	q.RegisterJob(usecase.NewRetrainJob(p))
	return p
}

func hyperparameters(cfg *config.Config) models.Hyperparameters {
	hp := models.DefaultHyperparameters()
	if cfg.Forecast.MaxIterations > 0 {
		hp.MaxIterations = cfg.Forecast.MaxIterations
	}
	if cfg.Forecast.LearningRate > 0 {
		hp.LearningRate = cfg.Forecast.LearningRate
	}
	if cfg.Forecast.MaxError > 0 {
		hp.MaxError = cfg.Forecast.MaxError
	}
	return hp
}

func ProvideTicksUseCase(store repository.TickStore) *usecase.TicksUseCase {
	return usecase.NewTicksUseCase(store)
}

func ProvideForecastHandler(cfg *config.Config, l *applogger.Logger, p *usecase.ForecastPipeline, ticks *usecase.TicksUseCase, store repository.TickStore) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, p, ticks, store, api.RateLimit{
		Capacity:     cfg.Server.RateLimit.Capacity,
		RefillPerSec: cfg.Server.RateLimit.RefillPerSec,
	})
}

func ProvideHTTPServer(cfg *config.Config, h *api.ForecastEchoHandler, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, l, opts...)
}

// ProvideRealtimePipeline throttles and buffers feed ticks before they reach
// the forecast pipeline.
func ProvideRealtimePipeline(cfg *config.Config, p *usecase.ForecastPipeline, m repository.Metrics, l *applogger.Logger) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(p, m,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithBufferSize(cfg.Feed.BufferSize),
		mid.WithPipelineLogger(l),
	)
}

func ProvideFinnhubStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	return finnhub.New(finnhub.Config{
		APIKey:         cfg.Feed.APIKey,
		WebSocketURL:   cfg.Feed.WebSocketURL,
		Symbols:        cfg.Feed.Symbols,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		PingInterval:   cfg.Feed.PingInterval,
	}, l)
}

// ProvideFeedCollector returns nil when the live feed is disabled.
func ProvideFeedCollector(cfg *config.Config, stream repository.MarketStream, pipe *mid.RealtimePipeline, m repository.Metrics, l *applogger.Logger) *usecase.FeedCollector {
	if !cfg.Feed.Enabled {
		return nil
	}
	return usecase.NewFeedCollector(stream, usecase.NewCandleBuilder(cfg.Feed.TimeFrame), pipe, m, l)
}

// ProvideKafkaConsumer returns nil unless the tick consumer is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled || len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.LoggingHook(l.Named("kafka"), time.Second),
	))
	return consumer, nil
}

func ProvideKafkaTicksHandler(cfg *config.Config, p *usecase.ForecastPipeline, m repository.Metrics, l *applogger.Logger) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, p, m, l)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	h *api.ForecastEchoHandler,
	q *queue.WorkerQueue,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
) *server.App {
	return server.New(cfg, l, srv, h, q, collector, consumer, kh)
}
