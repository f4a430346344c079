package redis

import (
	"context"
	"fmt"

	"invoice-payment-service/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient connects to the Redis instance shared by the idempotency cache
// and the rate limiter. The client is closed again if the first ping fails.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	addr := cfg.Addr()
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s (db %d) unreachable: %w", addr, cfg.DB, err)
	}

	log.Info().Str("addr", addr).Int("db", cfg.DB).Msg("connected to redis")
	return client, nil
}
