// Package tiered chains the in-process ops-data cache in front of the
// fleet-shared one. Reads promote shared hits into the local tier; writes
// and deletes go to both so the tiers never disagree for long.
package tiered

import (
	"context"
	"time"

	"github.com/skywise-ai/irops/internal/port/cache"
)

// Cache layers a local tier over a shared one.
type Cache struct {
	local    cache.Cache
	shared   cache.Cache
	l1Expire time.Duration
}

// New builds the tiered cache. l1Expire bounds how long a promoted shared
// hit stays in the local tier before the shared tier is consulted again.
func New(local, shared cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{local: local, shared: shared, l1Expire: l1Expire}
}

// Get checks the local tier first and only falls through to the shared tier
// on a local miss. A shared hit is promoted locally before returning.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, ok, err := c.local.Get(ctx, key); err != nil || ok {
		return val, ok, err
	}

	val, ok, err := c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.local.Set(ctx, key, val, c.l1Expire)
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.shared.Set(ctx, key, value, ttl)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.shared.Delete(ctx, key)
}
