//go:build wireinject
// +build wireinject

package di

import (
	"FinCast/pkg/config"
	"FinCast/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideKafkaEventPublisher,
	ProvideEventPublisher,
	ProvideLogger,
	ProvideMetrics,
	ProvideTickStore,
	ProvideRangeMirror,
)

var forecastSet = wire.NewSet(
	ProvideRangeCache,
	ProvideTrainer,
	ProvideModelStore,
	ProvidePredictor,
	ProvideWorkerQueue,
	ProvideForecastPipeline,
	ProvideTicksUseCase,
)

var transportSet = wire.NewSet(
	ProvideForecastHandler,
	ProvideHTTPServer,
	ProvideRealtimePipeline,
	ProvideFinnhubStream,
	ProvideFeedCollector,
	ProvideKafkaConsumer,
	ProvideKafkaTicksHandler,
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup releases stores and Kafka clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		forecastSet,
		transportSet,
		ProvideApp,
	)
	return nil, nil, nil
}
