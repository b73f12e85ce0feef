// Package kafka publishes the live trade tick feed. This is the
// best-effort stream for market-data consumers; the durable
// execution-report path goes through the outbox and broadcaster.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type TickProducer struct {
	writer *kafka.Writer
}

func NewTickProducer(brokers []string, topic string) *TickProducer {
	return &TickProducer{
		writer: &kafka.Writer{
			Addr:  kafka.TCP(brokers...),
			Topic: topic,
			// Keyed by symbol so per-symbol tick order survives
			// partitioning.
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish enqueues one tick keyed by symbol. Async: errors surface in
// the writer's completion callback, not here.
func (p *TickProducer) Publish(ctx context.Context, symbol string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(symbol),
		Value: payload,
	})
}

func (p *TickProducer) Close() error {
	return p.writer.Close()
}
