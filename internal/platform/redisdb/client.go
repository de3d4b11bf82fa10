package redisdb

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbaucer/kgraph/internal/platform/envutil"
	"github.com/mbaucer/kgraph/internal/platform/logger"
)

// NewFromEnv returns a Redis client, or nil when REDIS_ADDR is unset or
// the server is unreachable. Callers treat a nil client as "cache off".
func NewFromEnv(log *logger.Logger) *redis.Client {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if log != nil {
			log.Warn("Redis unreachable, caching disabled", "addr", addr, "error", err)
		}
		_ = client.Close()
		return nil
	}
	return client
}
