package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis. Values are
// payment attempt IDs keyed by "invoice_id:key".
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idempotency:",
	}
}

// Get returns the cached attempt ID, or "" if the key is not cached.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis idempotency get: %w", err)
	}
	return val, nil
}

// Set caches the attempt ID for key. An existing mapping is kept, since the
// first attempt created under a key stays authoritative.
func (c *IdempotencyCache) Set(ctx context.Context, key string, attemptID string, ttl time.Duration) error {
	if err := c.client.SetNX(ctx, c.prefix+key, attemptID, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
