package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/virtual-office/internal/lock"
)

var (
	// ErrCardNotFound is returned when the referenced card does not exist.
	ErrCardNotFound = errors.New("payment method not found")
	// ErrLastMethod prevents removing the only saved card.
	ErrLastMethod = errors.New("cannot remove the only payment method")
)

// Store keeps each user's saved cards as a JSON document in Redis.
type Store struct {
	Client *redis.Client
	Locker lock.Locker
	Prefix string
	Log    zerolog.Logger
	NewID  func() string
}

func (s *Store) key(userID string) string {
	return s.Prefix + "payment-methods:" + userID
}

func (s *Store) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// List returns the user's saved cards in insertion order.
func (s *Store) List(ctx context.Context, userID string) ([]Card, error) {
	raw, err := s.Client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Card{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payment methods: %w", err)
	}
	var cards []Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("discarding corrupted payment methods")
		return []Card{}, nil
	}
	return cards, nil
}

func (s *Store) save(ctx context.Context, userID string, cards []Card) error {
	raw, err := json.Marshal(cards)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, s.key(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save payment methods: %w", err)
	}
	return nil
}

func (s *Store) mutate(ctx context.Context, userID string, fn func([]Card) ([]Card, error)) ([]Card, error) {
	var out []Card
	err := s.Locker.WithLock(ctx, "payment-methods:"+userID, func(ctx context.Context) error {
		cards, err := s.List(ctx, userID)
		if err != nil {
			return err
		}
		next, err := fn(cards)
		if err != nil {
			return err
		}
		if err := s.save(ctx, userID, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

// Add saves a new card. The first card a user saves becomes the default.
func (s *Store) Add(ctx context.Context, userID string, in CardInput) (Card, error) {
	card, err := NewCard(s.newID(), in)
	if err != nil {
		return Card{}, err
	}
	_, err = s.mutate(ctx, userID, func(cards []Card) ([]Card, error) {
		card.IsDefault = len(cards) == 0
		return append(cards, card), nil
	})
	if err != nil {
		return Card{}, err
	}
	return card, nil
}

// Remove deletes a card. Removing the default promotes the first remaining
// card.
func (s *Store) Remove(ctx context.Context, userID, cardID string) ([]Card, error) {
	return s.mutate(ctx, userID, func(cards []Card) ([]Card, error) {
		idx := indexOf(cards, cardID)
		if idx < 0 {
			return nil, ErrCardNotFound
		}
		if len(cards) == 1 {
			return nil, ErrLastMethod
		}
		wasDefault := cards[idx].IsDefault
		next := append(append([]Card{}, cards[:idx]...), cards[idx+1:]...)
		if wasDefault {
			next[0].IsDefault = true
		}
		return next, nil
	})
}

// SetDefault marks exactly one card as default.
func (s *Store) SetDefault(ctx context.Context, userID, cardID string) ([]Card, error) {
	return s.mutate(ctx, userID, func(cards []Card) ([]Card, error) {
		if indexOf(cards, cardID) < 0 {
			return nil, ErrCardNotFound
		}
		for i := range cards {
			cards[i].IsDefault = cards[i].ID == cardID
		}
		return cards, nil
	})
}

// Seed stores the given cards for a user who has none yet.
func (s *Store) Seed(ctx context.Context, userID string, cards []Card) error {
	_, err := s.mutate(ctx, userID, func(existing []Card) ([]Card, error) {
		if len(existing) > 0 {
			return existing, nil
		}
		return cards, nil
	})
	return err
}

// DemoCards mirrors the two cards shown to the demo client.
func DemoCards() []Card {
	return []Card{
		{ID: "c1", Brand: BrandVisa, Last4: "4242", Holder: "Nguyen Van A", Expiry: "12/28", IsDefault: true},
		{ID: "c2", Brand: BrandMastercard, Last4: "8888", Holder: "Nguyen Van A", Expiry: "06/27"},
	}
}

func indexOf(cards []Card, id string) int {
	for i, c := range cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}
