// Package cache is the port for the serialized key-value caches that sit in
// front of the ops-data service.
package cache

import (
	"context"
	"time"
)

// Cache stores serialized records by key. Get reports a miss with a false
// second return rather than an error; errors mean the backing store failed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
