// Package kafka publishes transition events to a Kafka topic.
//
// Messages are keyed by memory id so all transitions of one memory land on
// the same partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	segmentio "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream"
)

// DefaultTopic is the topic transition events are published to when none is
// configured.
const DefaultTopic = "smartsteps.memory.transitions"

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of broker addresses, host:port.
	Brokers []string

	// Topic is the destination topic. Defaults to DefaultTopic.
	Topic string
}

// Publisher implements eventstream.Publisher on a Kafka writer.
type Publisher struct {
	writer *segmentio.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &segmentio.Writer{
		Addr:     segmentio.TCP(cfg.Brokers...),
		Topic:    topic,
		Balancer: &segmentio.LeastBytes{},
	}

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishTransition serializes the event and writes it to the topic.
func (p *Publisher) PublishTransition(ctx context.Context, event *eventstream.MemoryTransitionedEvent) error {
	if event == nil {
		return eventstream.ErrNilTransitionEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling transition event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, segmentio.Message{
		Key:   []byte(event.MemoryID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing transition event: %w", err)
	}

	p.logger.Debug("published transition event",
		zap.String("memory_id", event.MemoryID),
		zap.String("to_status", event.ToStatus),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
