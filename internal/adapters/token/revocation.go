package token

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/pralapin/school-service/internal/config"
	"github.com/pralapin/school-service/internal/core/ports"
)

const revokedPrefix = "revoked_refresh:"

// RedisRevocationStore keeps revoked token ids until their natural expiry.
type RedisRevocationStore struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	now    func() time.Time
}

var _ ports.RevocationStore = (*RedisRevocationStore)(nil)

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
		cb:     config.NewCircuitBreaker("Redis-Revocation"),
		now:    time.Now,
	}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
	})
	return config.Unavailable(err)
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		err := s.client.Get(ctx, revokedPrefix+tokenID).Err()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, config.Unavailable(err)
	}
	return result.(bool), nil
}

// NoopRevocationStore is used when Redis is not configured; logout then only
// discards the token client-side.
type NoopRevocationStore struct{}

func (NoopRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	return nil
}

func (NoopRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return false, nil
}
