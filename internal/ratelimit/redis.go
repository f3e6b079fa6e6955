package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisLimiter keeps the sliding window in a per-origin sorted set so
// multiple API instances share one quota. The add-then-count runs in a
// MULTI block; an over-admitted member is removed again, so the ceiling
// holds under concurrent checks.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, originKey string) (bool, error) {
	key := "booking:ratelimit:" + originKey
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-l.window).UnixNano(), 10)
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if card.Val() > int64(l.max) {
		// Rejected attempts must not consume quota.
		if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

var _ Limiter = (*RedisLimiter)(nil)
