// Package mocks provides hand-written implementations of the core ports for
// tests. Each mock records its calls and supports error injection.
package mocks

import (
	"context"
	"sync"

	"github.com/pralapin/school-service/internal/core/ports"
)

// MockPushSender implements ports.PushSender for testing.
type MockPushSender struct {
	mu sync.RWMutex

	// Track sent batches for verification
	Sent []ports.PushMessage

	// Error injection for testing error scenarios
	SendError error
}

var _ ports.PushSender = (*MockPushSender)(nil)

func NewMockPushSender() *MockPushSender {
	return &MockPushSender{Sent: make([]ports.PushMessage, 0)}
}

// Send records the batch. On success every token counts as delivered.
func (m *MockPushSender) Send(ctx context.Context, msg ports.PushMessage) (ports.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sent = append(m.Sent, msg)
	if m.SendError != nil {
		return ports.BatchResult{}, m.SendError
	}
	return ports.BatchResult{SuccessCount: len(msg.Tokens)}, nil
}

// Messages returns a copy of every batch sent so far.
func (m *MockPushSender) Messages() []ports.PushMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ports.PushMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// Tokens flattens the tokens of every batch sent so far.
func (m *MockPushSender) Tokens() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for _, msg := range m.Sent {
		out = append(out, msg.Tokens...)
	}
	return out
}

func (m *MockPushSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sent = make([]ports.PushMessage, 0)
	m.SendError = nil
}
