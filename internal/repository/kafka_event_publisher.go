package repository

import (
	"context"
	"fmt"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
)

// KafkaEventPublisher publishes training events keyed by series, and
// doubles as the log collector's publisher.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishTrainingEvent(ctx context.Context, ev models.TrainingEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Key), ev); err != nil {
		return fmt.Errorf("publish training event: %w", err)
	}
	return nil
}

// PublishMessage sends an arbitrary JSON payload to topic.
func (p *KafkaEventPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopEventPublisher drops every event; used when Kafka is not configured.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishTrainingEvent(context.Context, models.TrainingEvent) error {
	return nil
}

func (NopEventPublisher) Close() error { return nil }

var (
	_ drepo.EventPublisher = (*KafkaEventPublisher)(nil)
	_ drepo.EventPublisher = NopEventPublisher{}
)
