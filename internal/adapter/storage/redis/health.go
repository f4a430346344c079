package redis

import (
	"context"
	"fmt"

	"invoice-payment-service/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// HealthCheck reports Redis reachability. Redis backs the idempotency cache
// and the rate limiter, so a failure here degrades but does not stop the API.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Name() string { return ports.DependencyRedis }

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}
