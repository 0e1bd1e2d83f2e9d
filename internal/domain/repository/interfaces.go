package repository

import (
	"context"

	"FinCast/internal/domain/models"
)

// MarketStream is a live trade source.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TickStore persists ticks and answers the range and history queries the
// forecast pipeline needs.
type TickStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, t models.Tick) error
	// QueryExtreme returns the tick holding the smallest (OrderMin) or largest
	// (OrderMax) value of field within tr, or nil when the range is empty.
	QueryExtreme(ctx context.Context, key models.SeriesKey, field Field, order Order, tr TimeRange) (*models.Tick, error)
	// QueryOrdered returns at most limit ticks within tr, the most recent ones
	// when more exist, in ascending timestamp order.
	QueryOrdered(ctx context.Context, key models.SeriesKey, tr TimeRange, limit int) ([]models.Tick, error)
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher reports training runs to downstream consumers.
type EventPublisher interface {
	PublishTrainingEvent(ctx context.Context, ev models.TrainingEvent) error
	Close() error
}

type Metrics interface {
	RecordTickIngested(key string)
	RecordTickRejected(reason string)
	RecordRetrain(result string)
	RecordPrediction(key string, value float64)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
