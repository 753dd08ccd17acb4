package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer writes events for downstream consumers (notification and
// analytics services). One writer serves every topic.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish streams one event keyed by the entity id, so all events for an
// order land on the same partition in order.
func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// Close gracefully shuts down the Kafka writer
func (p *Producer) Close() error {
	return p.Writer.Close()
}
