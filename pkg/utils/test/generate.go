package testutils

import (
	"context"
	"fmt"
	"sync"
)

// MockGenerate builds a GenerateFunc-compatible closure that records calls
// and returns configurable responses.
type MockGenerate struct {
	mu sync.Mutex

	// Responses are returned in order; the last one repeats.
	Responses []string

	// Err, when set, is returned for every call.
	Err error

	// FailFirst makes the first N calls fail before responses are served.
	FailFirst int

	// Prompts accumulates every prompt passed in.
	Prompts []string

	// Contexts accumulates every context text passed in.
	Contexts []string

	calls int
}

// Func returns the closure to hand to components expecting a GenerateFunc.
func (m *MockGenerate) Func() func(ctx context.Context, prompt, contextText string) (string, error) {
	return func(_ context.Context, prompt, contextText string) (string, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.Prompts = append(m.Prompts, prompt)
		m.Contexts = append(m.Contexts, contextText)
		m.calls++

		if m.Err != nil {
			return "", m.Err
		}
		if m.calls <= m.FailFirst {
			return "", fmt.Errorf("mock generate failure %d", m.calls)
		}
		if len(m.Responses) == 0 {
			return "{}", nil
		}

		idx := m.calls - m.FailFirst - 1
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		return m.Responses[idx], nil
	}
}

// Calls reports how many times the generate function ran.
func (m *MockGenerate) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
