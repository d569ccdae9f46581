package events

import (
	"context"
	"encoding/json"
	"fmt"

	"confidee-relayer/internal/model"
)

// MessageProducer is satisfied by client.KafkaProducer.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaPublisher keys messages by address so one wallet's events stay
// ordered within a partition.
type KafkaPublisher struct {
	producer MessageProducer
	topic    string
}

func NewKafkaPublisher(producer MessageProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (k *KafkaPublisher) Name() string { return "kafka" }

func (k *KafkaPublisher) Publish(ctx context.Context, event model.RelayEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode relay event: %w", err)
	}

	headers := map[string]string{
		"event_type": "relay." + event.Status,
		"event_id":   event.EventID.String(),
	}
	return k.producer.ProduceMessage(ctx, k.topic, []byte(event.Address), value, headers)
}
