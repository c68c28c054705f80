package config

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/pralapin/school-service/internal/core/domain"
)

// NewCircuitBreaker creates a circuit breaker with standard settings.
// The name parameter uniquely identifies the circuit breaker instance.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	var timeout time.Duration

	// Use different timeouts for different dependencies
	switch name {
	case "Redis-Revocation":
		timeout = time.Second * 5
	case "PostgreSQL", "MongoDB":
		timeout = time.Second * 10
	default:
		timeout = time.Second * 30 // RabbitMQ, S3, FCM
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Second * 10,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Open circuit after 3 consecutive failures
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: isHealthyOutcome,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Error("circuit breaker state changed")
		},
	})
}

// Lookups that miss or collide are answers from a healthy backend.
func isHealthyOutcome(err error) bool {
	return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict)
}

// Unavailable marks err as a failure of the dependency behind a breaker,
// including gobreaker.ErrOpenState. Answers from a healthy backend pass
// through unchanged.
func Unavailable(err error) error {
	if isHealthyOutcome(err) || errors.Is(err, domain.ErrUnavailable) {
		return err
	}
	return errors.Join(domain.ErrUnavailable, err)
}
