package promotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Repository persists the promotion list as a whole.
type Repository interface {
	Load(ctx context.Context) ([]Promo, error)
	Save(ctx context.Context, promos []Promo) error
}

// RedisRepository stores the list as one JSON document.
type RedisRepository struct {
	Client *redis.Client
	Prefix string
	Log    zerolog.Logger
	Now    func() time.Time
}

func (r *RedisRepository) key() string { return r.Prefix + "promotions" }

func (r *RedisRepository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// Load returns the stored list. A missing key yields the defaults; a corrupted
// document is logged and replaced by the defaults.
func (r *RedisRepository) Load(ctx context.Context) ([]Promo, error) {
	raw, err := r.Client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Defaults(r.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load promotions: %w", err)
	}
	var promos []Promo
	if err := json.Unmarshal(raw, &promos); err != nil {
		r.Log.Warn().Err(err).Str("key", r.key()).Msg("corrupted promotions document, using defaults")
		return Defaults(r.now()), nil
	}
	return promos, nil
}

// Save replaces the stored list.
func (r *RedisRepository) Save(ctx context.Context, promos []Promo) error {
	if promos == nil {
		promos = []Promo{}
	}
	raw, err := json.Marshal(promos)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, r.key(), raw, 0).Err(); err != nil {
		return fmt.Errorf("save promotions: %w", err)
	}
	return nil
}
