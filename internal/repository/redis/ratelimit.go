package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	rateLimitPrefix = "ratelimit:"
	rateLimitWindow = time.Minute
)

// RateLimiter counts requests per key in fixed windows. A window opens on the
// first request for a key and closes when its counter expires.
type RateLimiter struct {
	client *Client
	limit  int64
	now    func() time.Time
}

// NewRateLimiter allows requestsPerMinute+burst requests per window, and at
// least one.
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	limit := int64(requestsPerMinute + burst)
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{client: client, limit: limit, now: time.Now}
}

// Allow counts one request against key. It reports whether the request fits
// in the current window, how many requests remain, and when the window resets.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	counterKey := r.client.key(rateLimitPrefix, key)

	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, counterKey)
		pipe.ExpireNX(ctx, counterKey, rateLimitWindow)
		ttl = pipe.PTTL(ctx, counterKey)
		return nil
	})
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("count request for %s: %w", key, err)
	}

	now := r.now()
	reset := now.Add(rateLimitWindow)
	if d := ttl.Val(); d > 0 {
		reset = now.Add(d)
	}

	used := count.Val()
	if used > r.limit {
		log.Debug().Str("key", key).Int64("count", used).Time("reset", reset).Msg("rate limit exceeded")
		return false, 0, reset, nil
	}
	return true, int(r.limit - used), reset, nil
}

// Limit is the number of requests allowed per window.
func (r *RateLimiter) Limit() int {
	return int(r.limit)
}

// Reset drops the counter for key, opening a fresh window on its next request.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.rdb.Del(ctx, r.client.key(rateLimitPrefix, key)).Err()
}
