package events

import (
	"context"
	"encoding/json"
	"fmt"

	"rollcall/internal/platform/kafka/producer"
)

// Sink delivers events to their destination.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// MessageProducer is the subset of the Kafka producer used by KafkaSink.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink writes each event as one JSON record on topic.
type KafkaSink struct {
	producer MessageProducer
	topic    string
}

// NewKafkaSink constructs a sink publishing to topic.
func NewKafkaSink(p MessageProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Key),
		Value: value,
		Headers: map[string]string{
			"event_type": string(event.Type),
		},
	}
	if event.RequestID != "" {
		msg.Headers["request_id"] = event.RequestID
	}
	if err := s.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("produce %s: %w", event.Type, err)
	}
	return nil
}
