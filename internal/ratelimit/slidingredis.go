package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter counts events per key in a sliding window kept in a Redis sorted
// set scored by event time.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow records an event for key and reports whether it fits within limit
// events per window. A missing client or non-positive limits allow everything.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (Decision, error) {
	now := l.now()
	if l.Client == nil || limit <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, nil
	}
	redisKey := l.Prefix + "ratelimit:" + key
	cutoff := now.Add(-window).UnixNano()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	count := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{ResetAt: now.Add(window)}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	current := int(count.Val())
	resetAt := now.Add(window)
	if first := oldest.Val(); len(first) == 1 {
		resetAt = time.Unix(0, int64(first[0].Score)).Add(window)
	}
	return Decision{
		Allowed:   current <= limit,
		Remaining: max(limit-current, 0),
		ResetAt:   resetAt,
	}, nil
}
