package mocks

import (
	"sync"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// MockReceiptRenderer implements ports.ReceiptRenderer and captures the
// receipt context it was given.
type MockReceiptRenderer struct {
	mu sync.RWMutex

	Contexts []domain.ReceiptContext

	// Output is returned on success; nil mimics a chain where every
	// renderer failed.
	Output      []byte
	RenderError error
}

var _ ports.ReceiptRenderer = (*MockReceiptRenderer)(nil)

func NewMockReceiptRenderer() *MockReceiptRenderer {
	return &MockReceiptRenderer{Output: []byte("%PDF-1.4 mock")}
}

func (m *MockReceiptRenderer) Render(b *domain.Billing, rc domain.ReceiptContext) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Contexts = append(m.Contexts, rc)
	if m.RenderError != nil {
		return nil, m.RenderError
	}
	return m.Output, nil
}

func (m *MockReceiptRenderer) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Contexts)
}
