package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSON stores JSON payloads in Redis under a common prefix.
type JSON struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// Get unmarshals the cached payload into dst and reports whether it existed.
// A payload that no longer decodes counts as a miss.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.Client == nil || key == "" {
		return false, nil
	}
	data, err := c.Client.Get(ctx, c.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// Set stores v with the configured TTL, or ttl when positive.
func (c *JSON) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.Client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.TTL
	}
	return c.Client.Set(ctx, c.Prefix+key, data, ttl).Err()
}

// UserKey scopes a key to one user.
func UserKey(userID, base string) string {
	if userID == "" {
		return base
	}
	return "user:" + userID + ":" + base
}
