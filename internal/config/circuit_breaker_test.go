package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/pralapin/school-service/internal/core/domain"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test-dependency")
	down := errors.New("connection refused")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, down })
		assert.ErrorIs(t, err, down)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(func() (interface{}, error) { return "unreachable", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreaker_DomainMissesKeepItClosed(t *testing.T) {
	cb := NewCircuitBreaker("PostgreSQL")
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, fmt.Errorf("%w: users u1", domain.ErrNotFound)
		})
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, fmt.Errorf("%w: duplicate", domain.ErrConflict)
		})
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestUnavailable(t *testing.T) {
	down := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	miss := fmt.Errorf("%w: users u1", domain.ErrNotFound)
	dup := fmt.Errorf("%w: users u1", domain.ErrConflict)

	assert.NoError(t, Unavailable(nil))
	assert.Same(t, miss, Unavailable(miss))
	assert.Same(t, dup, Unavailable(dup))

	err := Unavailable(down)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, err, Unavailable(err), "already marked errors are not wrapped twice")

	assert.ErrorIs(t, Unavailable(gobreaker.ErrOpenState), domain.ErrUnavailable)
}
