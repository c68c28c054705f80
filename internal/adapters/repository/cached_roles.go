package repository

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// CachedRoles fronts the role collection with an expiring LRU keyed by role
// key. Every write drops the cached entry.
type CachedRoles struct {
	next  ports.Repository[domain.Role]
	cache *lru.LRU[string, domain.Role]
}

var _ ports.Repository[domain.Role] = (*CachedRoles)(nil)

func NewCachedRoles(next ports.Repository[domain.Role], size int, ttl time.Duration) *CachedRoles {
	if size < 1 {
		size = 64
	}
	return &CachedRoles{
		next:  next,
		cache: lru.NewLRU[string, domain.Role](size, nil, ttl),
	}
}

// Get returns a copy so callers cannot mutate the cached value.
func (c *CachedRoles) Get(ctx context.Context, key string) (*domain.Role, error) {
	if role, ok := c.cache.Get(key); ok {
		return &role, nil
	}
	role, err := c.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, *role)
	cp := *role
	return &cp, nil
}

func (c *CachedRoles) FindOne(ctx context.Context, q ports.Query) (*domain.Role, error) {
	return c.next.FindOne(ctx, q)
}

func (c *CachedRoles) Find(ctx context.Context, q ports.Query) ([]*domain.Role, error) {
	return c.next.Find(ctx, q)
}

func (c *CachedRoles) Count(ctx context.Context, q ports.Query) (int64, error) {
	return c.next.Count(ctx, q)
}

func (c *CachedRoles) Insert(ctx context.Context, role *domain.Role) error {
	defer c.cache.Remove(role.Key)
	return c.next.Insert(ctx, role)
}

func (c *CachedRoles) Save(ctx context.Context, role *domain.Role) error {
	defer c.cache.Remove(role.Key)
	return c.next.Save(ctx, role)
}

func (c *CachedRoles) Delete(ctx context.Context, key string) error {
	defer c.cache.Remove(key)
	return c.next.Delete(ctx, key)
}

// Len reports the number of cached roles.
func (c *CachedRoles) Len() int { return c.cache.Len() }
