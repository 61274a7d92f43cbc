package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned when the locker has no Redis client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Locker serialises read-modify-write cycles on shared Redis documents
// (promotion list, saved cards, notifications).
type Locker struct {
	Client       *redis.Client
	Prefix       string
	TTL          time.Duration
	RetryBackoff time.Duration
}

// WithLock runs fn while holding the named lock. The lock is released after
// fn returns, whatever its result. If the lock cannot be taken before ctx is
// done, ctx.Err() is returned.
func (l Locker) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	if l.Client == nil {
		return ErrNotConfigured
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	key := l.Prefix + "lock:" + name
	token := uuid.NewString()

	for {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer func() {
				_ = releaseScript.Run(context.Background(), l.Client, []string{key}, token).Err()
			}()
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
