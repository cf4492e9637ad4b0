package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventpilot/internal/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Envelope wraps every domain event on the bus.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher is what services depend on to emit domain events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

// NewProducer returns a producer whose writer routes by message topic.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Logger: log}
}

func newEnvelope(topic string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       topic,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Publish streams payload to topic keyed by key, so every event of one
// entity lands on the same partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	env, err := newEnvelope(topic, payload)
	if err != nil {
		return err
	}
	msgBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s id=%s", key, env.ID))

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// LogPublisher stands in for Kafka when it is disabled.
type LogPublisher struct {
	Logger *logger.Logger
}

func (p *LogPublisher) Publish(_ context.Context, topic, key string, payload interface{}) error {
	if _, err := newEnvelope(topic, payload); err != nil {
		return err
	}
	p.Logger.Debug("KAFKA", fmt.Sprintf("Kafka disabled, dropped %s event for %s", topic, key))
	return nil
}
