package mocks

import (
	"context"
	"sync"

	"github.com/pralapin/school-service/internal/core/ports"
)

// MockObjectStore implements ports.ObjectStore in memory.
type MockObjectStore struct {
	mu sync.RWMutex

	Objects map[string][]byte

	// Call tracking for verification
	PutCalls    []string
	DeleteCalls []string

	// Error injection for testing error scenarios
	PutError    error
	DeleteError error
}

var _ ports.ObjectStore = (*MockObjectStore)(nil)

const MockObjectBaseURL = "https://objects.test/"

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Objects: make(map[string][]byte)}
}

func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCalls = append(m.PutCalls, key)
	if m.PutError != nil {
		return "", m.PutError
	}
	m.Objects[key] = append([]byte(nil), data...)
	return MockObjectBaseURL + key, nil
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, key)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.Objects, key)
	return nil
}

// Has reports whether key is currently stored.
func (m *MockObjectStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.Objects[key]
	return ok
}
