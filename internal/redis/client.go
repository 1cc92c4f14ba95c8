// Package redis is the optional shared-state adapter: an atomic
// rate-bucket store for admission control and a TTL'd directory that
// mirrors live room summaries.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mossy-p/burner-signaling/config"
)

// Connect opens a client and checks it with a ping. The caller owns the
// returned client and must Close it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
