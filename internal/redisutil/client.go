package redisutil

import (
	"github.com/redis/go-redis/v9"

	"eventpush/internal/config"
)

// NewClient returns nil when REDIS_ADDR is unset; callers fall back to in-process state.
func NewClient(cfg config.RedisConfig) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
