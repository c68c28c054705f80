package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pralapin/school-service/internal/core/ports"
)

// MockRevocationStore implements ports.RevocationStore in memory.
type MockRevocationStore struct {
	mu sync.RWMutex

	Revoked map[string]time.Time

	RevokeError    error
	IsRevokedError error
}

var _ ports.RevocationStore = (*MockRevocationStore)(nil)

func NewMockRevocationStore() *MockRevocationStore {
	return &MockRevocationStore{Revoked: make(map[string]time.Time)}
}

func (m *MockRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RevokeError != nil {
		return m.RevokeError
	}
	m.Revoked[tokenID] = until
	return nil
}

func (m *MockRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.IsRevokedError != nil {
		return false, m.IsRevokedError
	}
	_, ok := m.Revoked[tokenID]
	return ok, nil
}

// PlainHasher implements ports.PasswordHasher without any cost so service
// tests stay fast. Never use it outside tests.
type PlainHasher struct{}

var _ ports.PasswordHasher = PlainHasher{}

const plainPrefix = "plain:"

func (PlainHasher) Hash(password string) (string, error) { return plainPrefix + password, nil }

func (PlainHasher) Verify(hashed, password string) bool {
	return strings.TrimPrefix(hashed, plainPrefix) == password && strings.HasPrefix(hashed, plainPrefix)
}
