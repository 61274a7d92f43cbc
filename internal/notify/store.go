package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/obs"
)

// Store keeps notifications in a Redis hash indexed by a sorted set on
// creation time. Read receipts are tracked per user.
type Store struct {
	Client *redis.Client
	Prefix string
	Log    zerolog.Logger
	Now    func() time.Time
	NewID  func() string
}

func (s *Store) itemsKey() string { return s.Prefix + "notifications:items" }
func (s *Store) indexKey() string { return s.Prefix + "notifications:index" }
func (s *Store) readKey(user string) string {
	return s.Prefix + "notifications:read:" + strings.ToLower(user)
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Send validates and stores a notification.
func (s *Store) Send(ctx context.Context, n Notification) (Notification, error) {
	n, err := Normalize(n)
	if err != nil {
		return Notification{}, err
	}
	if n.ID == "" {
		if s.NewID != nil {
			n.ID = s.NewID()
		} else {
			n.ID = uuid.NewString()
		}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.Read = false
	if err := s.put(ctx, n); err != nil {
		return Notification{}, err
	}
	if obs.NotificationsSentTotal != nil {
		obs.NotificationsSentTotal.WithLabelValues(string(n.Target)).Inc()
	}
	return n, nil
}

func (s *Store) put(ctx context.Context, n Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.itemsKey(), n.ID, raw)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(n.CreatedAt.UnixMilli()), Member: n.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// Seed writes the given notifications when the store is empty.
func (s *Store) Seed(ctx context.Context, items []Notification) error {
	count, err := s.Client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("count notifications: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, n := range items {
		if err := s.put(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a notification for every recipient.
func (s *Store) Remove(ctx context.Context, id string) error {
	removed, err := s.Client.ZRem(ctx, s.indexKey(), id).Result()
	if err != nil {
		return fmt.Errorf("remove notification: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return s.Client.HDel(ctx, s.itemsKey(), id).Err()
}

// All returns every notification, newest first.
func (s *Store) All(ctx context.Context) ([]Notification, error) {
	ids, err := s.Client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if len(ids) == 0 {
		return []Notification{}, nil
	}
	values, err := s.Client.HMGet(ctx, s.itemsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	out := make([]Notification, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			s.Log.Warn().Err(err).Str("notification_id", ids[i]).Msg("skipping corrupted notification")
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Sent lists notifications for the admin history, searching title and body.
func (s *Store) Sent(ctx context.Context, query string, page, perPage int) ([]Notification, common.Pagination, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, common.Pagination{}, err
	}
	term := strings.ToLower(strings.TrimSpace(query))
	filtered := all[:0]
	for _, n := range all {
		if term == "" || strings.Contains(strings.ToLower(n.Title), term) || strings.Contains(strings.ToLower(n.Body), term) {
			filtered = append(filtered, n)
		}
	}
	start, end, meta := common.Paginate(len(filtered), page, perPage)
	return filtered[start:end], meta, nil
}

// Inbox returns the user's notifications, newest first, with read flags set.
// A non-positive limit returns everything. The unread count covers the whole
// inbox, not just the returned slice.
func (s *Store) Inbox(ctx context.Context, user string, limit int) ([]Notification, int, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	read, err := s.readSet(ctx, user)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Notification, 0, len(all))
	unread := 0
	for _, n := range all {
		if !n.VisibleTo(user) {
			continue
		}
		n.Read = read[n.ID]
		if !n.Read {
			unread++
		}
		out = append(out, n)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, unread, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *Store) UnreadCount(ctx context.Context, user string) (int, error) {
	_, unread, err := s.Inbox(ctx, user, 0)
	return unread, err
}

// MarkRead records that the user has read one notification.
func (s *Store) MarkRead(ctx context.Context, user, id string) error {
	raw, err := s.Client.HGet(ctx, s.itemsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	var n Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil || !n.VisibleTo(user) {
		return ErrNotFound
	}
	return s.Client.SAdd(ctx, s.readKey(user), id).Err()
}

// MarkAllRead marks every notification in the user's inbox as read.
func (s *Store) MarkAllRead(ctx context.Context, user string) error {
	items, _, err := s.Inbox(ctx, user, 0)
	if err != nil {
		return err
	}
	ids := make([]any, 0, len(items))
	for _, n := range items {
		if !n.Read {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return s.Client.SAdd(ctx, s.readKey(user), ids...).Err()
}

func (s *Store) readSet(ctx context.Context, user string) (map[string]bool, error) {
	members, err := s.Client.SMembers(ctx, s.readKey(user)).Result()
	if err != nil {
		return nil, fmt.Errorf("load read receipts: %w", err)
	}
	out := make(map[string]bool, len(members))
	for _, id := range members {
		out[id] = true
	}
	return out, nil
}
