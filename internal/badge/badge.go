// Package badge keeps the per-receiver unread count sent as the iOS app badge.
package badge

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "badge:"

type Counter struct {
	Redis *redis.Client
}

func New(rdb *redis.Client) *Counter { return &Counter{Redis: rdb} }

func key(receiverID string) string { return keyPrefix + receiverID }

// Increment bumps the receiver's count and returns the new value.
func (c *Counter) Increment(ctx context.Context, receiverID string) (int64, error) {
	return c.Redis.Incr(ctx, key(receiverID)).Result()
}

// decrScript lowers the count but never below zero, so a Reset that raced an undelivered
// push is not turned into a negative badge.
var decrScript = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n <= 1 then
	redis.call("DEL", KEYS[1])
	return 0
end
return redis.call("DECR", KEYS[1])
`)

// Decrement takes back one Increment for a push that was never submitted.
func (c *Counter) Decrement(ctx context.Context, receiverID string) (int64, error) {
	return decrScript.Run(ctx, c.Redis, []string{key(receiverID)}).Int64()
}

func (c *Counter) Get(ctx context.Context, receiverID string) (int64, error) {
	n, err := c.Redis.Get(ctx, key(receiverID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Reset clears the count, typically when the app is opened.
func (c *Counter) Reset(ctx context.Context, receiverID string) error {
	return c.Redis.Del(ctx, key(receiverID)).Err()
}
