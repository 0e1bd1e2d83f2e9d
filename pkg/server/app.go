package server

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"FinCast/internal/handler/api"
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

// App owns the lifecycle of every long running component. Optional
// components (feed, consumer) are nil when disabled.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	http      *xhttp.Server
	handler   *api.ForecastEchoHandler
	queue     *queue.WorkerQueue
	collector *usecase.FeedCollector
	consumer  *pkgkafka.Consumer
	kh        *usecase.KafkaTicksHandler
}

func New(
	cfg *config.Config,
	logger *applogger.Logger,
	http *xhttp.Server,
	handler *api.ForecastEchoHandler,
	q *queue.WorkerQueue,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.Named("app"),
		http:      http,
		handler:   handler,
		queue:     q,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
	}
}

// Run starts everything and blocks until SIGINT/SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.queue.Start(); err != nil {
		return err
	}
	go a.handler.RunJanitor(ctx, 5*time.Minute)

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.logger.Error("feed collector start failed", applogger.Error(err))
		} else {
			a.logger.Info("feed collector started", applogger.Strings("symbols", a.cfg.Feed.Symbols))
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer start failed", applogger.Error(err))
		}
	}

	if err := a.http.Start(); err != nil {
		return err
	}
	a.logger.Info("fincast running",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.Int("port", a.cfg.Server.Port))

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops producers of work before the things they feed. Stores and
// Kafka clients are closed afterwards by the injector cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.logger.Warn("feed collector stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if err := a.queue.Stop(ctx); err != nil {
		a.logger.Warn("worker queue stop error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
