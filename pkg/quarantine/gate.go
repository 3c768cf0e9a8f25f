package quarantine

import (
	"context"
	"sync"
)

// topicGate serializes in-flight quarantined drafts per (kind, topic) key.
// At most one holder per key; a second submission for the same key waits
// cooperatively until the first releases, or its context is cancelled.
type topicGate struct {
	mu    sync.Mutex
	inUse map[string]chan struct{}
}

func newTopicGate() *topicGate {
	return &topicGate{inUse: make(map[string]chan struct{})}
}

// acquire claims the key, waiting for the current holder if there is one.
func (g *topicGate) acquire(ctx context.Context, key string) error {
	for {
		g.mu.Lock()
		released, busy := g.inUse[key]
		if !busy {
			g.inUse[key] = make(chan struct{})
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-released:
		}
	}
}

// release frees the key and wakes all waiters; exactly one of them will
// reacquire.
func (g *topicGate) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if released, ok := g.inUse[key]; ok {
		delete(g.inUse, key)
		close(released)
	}
}
