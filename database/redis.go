package database

import (
	"context"
	"log/slog"
	"strings"

	"splitapp-backend/config"

	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client

// ConnectRedis is optional: without redis the app still runs, balance
// invalidation just stays local to this instance.
func ConnectRedis() {
	url := config.AppConfig.RedisURL
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			slog.Warn("invalid redis url, running without redis", "error", err)
			return
		}
		Redis = redis.NewClient(opts)
	} else {
		Redis = redis.NewClient(&redis.Options{Addr: url})
	}

	if err := Redis.Ping(context.Background()).Err(); err != nil {
		slog.Warn("redis not available, running without it", "error", err)
		Redis = nil
		return
	}

	slog.Info("redis connected")
}
