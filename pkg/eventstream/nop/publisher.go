package nop

import (
	"context"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTransition validates input and otherwise does nothing.
func (p *Publisher) PublishTransition(_ context.Context, event *eventstream.MemoryTransitionedEvent) error {
	if event == nil {
		return eventstream.ErrNilTransitionEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
