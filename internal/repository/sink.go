package repository

import (
	"context"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	"github.com/wekabeka1996/aurora/internal/domain/repository"
	pkgkafka "github.com/wekabeka1996/aurora/pkg/kafka"
)

// KafkaEventSink publishes decision and gate events to the event topic.
// Messages are keyed by symbol so consumers see per-symbol ordering.
type KafkaEventSink struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventSink(producer *pkgkafka.Producer, topic string) repository.EventSink {
	return &KafkaEventSink{producer: producer, topic: topic}
}

func (s *KafkaEventSink) Emit(ctx context.Context, e *models.Event) error {
	return s.producer.Publish(ctx, s.topic, []byte(e.Symbol), e)
}

func (s *KafkaEventSink) EmitBatch(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{Key: []byte(e.Symbol), Value: e}
	}
	return s.producer.PublishBatch(ctx, s.topic, msgs)
}

func (s *KafkaEventSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// LogPublisher adapts the Kafka producer to the logger collector's publisher
// interface so aggregated error logs ship to their own topic.
type LogPublisher struct {
	producer *pkgkafka.Producer
}

func NewLogPublisher(producer *pkgkafka.Producer) *LogPublisher {
	return &LogPublisher{producer: producer}
}

func (p *LogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
