package eventstream

import "context"

// Publisher publishes transition events to an event stream backend.
type Publisher interface {
	PublishTransition(ctx context.Context, event *MemoryTransitionedEvent) error
	Close() error
}
