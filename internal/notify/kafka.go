// Package notify delivers outbox events to the message broker consumed by the
// push and chat notification services.
package notify

import (
	"context"
	"fmt"

	"reservas-backend/internal/domain"
	"reservas-backend/internal/logger"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
)

// EventPublisher delivers one outbox event. Delivery is at-least-once.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.OutboxEvent) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer dials the brokers with acks from all in-sync replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.OutboxEvent) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.AggregateID),
		Value: sarama.ByteEncoder(ev.Payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(ev.ID)},
			{Key: []byte("event_type"), Value: []byte(ev.EventType)},
		},
	}

	carrier := headerCarrier(msg.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = carrier

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", ev.ID, err)
	}

	logger.Debug("Event published", "eventID", ev.ID, "topic", p.topic, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// headerCarrier adapts Kafka headers to the OpenTelemetry TextMapCarrier.
type headerCarrier []sarama.RecordHeader

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}

// LogPublisher is used when no brokers are configured: events are logged and
// considered delivered.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, ev domain.OutboxEvent) error {
	logger.Info("Outbox event (no broker configured)", "eventID", ev.ID, "type", ev.EventType, "aggregateID", ev.AggregateID)
	return nil
}

func (LogPublisher) Close() error { return nil }
