package testutils

import (
	"context"
	"sync"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/eventstream"
)

// MockPublisher records published transition events.
type MockPublisher struct {
	mu sync.Mutex

	// Events accumulates every published event.
	Events []*eventstream.MemoryTransitionedEvent

	// Err, when set, is returned for every publish.
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishTransition(_ context.Context, event *eventstream.MemoryTransitionedEvent) error {
	if event == nil {
		return eventstream.ErrNilTransitionEvent
	}
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Published returns a snapshot of the recorded events.
func (m *MockPublisher) Published() []*eventstream.MemoryTransitionedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.MemoryTransitionedEvent(nil), m.Events...)
}
