package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates the shared Redis client. An unreachable Redis is logged
// but not fatal: sessions and the contact-type cache degrade while it
// is down, the screens themselves keep working.
func New(ctx context.Context, addr string, log *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis ping", slog.String("addr", addr), slog.Any("error", err))
	}

	return client
}
