package calls

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/virtual-office/internal/cache"
	"github.com/noah-isme/virtual-office/internal/common"
)

// Query selects calls for the log, analytics and export views.
type Query struct {
	Days    int
	Status  Status
	Search  string
	GroupBy GroupBy
	Page    int
	PerPage int
}

// ParseRange accepts 7 or 30 days; anything else yields 7.
func ParseRange(value string) int {
	if strings.TrimSpace(value) == "30" {
		return 30
	}
	return 7
}

// Page is one page of the call log plus the headline summary.
type Page struct {
	Items      []Call            `json:"data"`
	Pagination common.Pagination `json:"pagination"`
	Summary    Summary           `json:"summary"`
}

// Service serves a customer's call log. Logs are generated per user and day
// and cached until the day ends.
type Service struct {
	Cache *cache.JSON
	Log   zerolog.Logger
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Calls returns the user's log for the last days days, newest first.
func (s *Service) Calls(ctx context.Context, userID string, days int) ([]Call, error) {
	now := s.now()
	day := now.Format("2006-01-02")
	key := cache.UserKey(userID, "calls:"+strconv.Itoa(days)+":"+day)

	var out []Call
	if hit, err := s.Cache.Get(ctx, key, &out); err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("call log cache read failed")
	} else if hit {
		return out, nil
	}

	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s|%d|%s", userID, days, day)
	out = Generate(now, days, rand.New(rand.NewPCG(h.Sum64(), uint64(days))))

	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	if err := s.Cache.Set(ctx, key, out, midnight.Sub(now)); err != nil {
		s.Log.Warn().Err(err).Str("key", key).Msg("call log cache write failed")
	}
	return out, nil
}

func (s *Service) filtered(ctx context.Context, userID string, q Query) ([]Call, error) {
	all, err := s.Calls(ctx, userID, q.Days)
	if err != nil {
		return nil, err
	}
	return Filter(all, q.Status, q.Search), nil
}

// List returns one page of filtered calls with the summary of all of them.
func (s *Service) List(ctx context.Context, userID string, q Query) (Page, error) {
	calls, err := s.filtered(ctx, userID, q)
	if err != nil {
		return Page{}, err
	}
	start, end, meta := common.Paginate(len(calls), q.Page, q.PerPage)
	return Page{Items: calls[start:end], Pagination: meta, Summary: Summarize(calls)}, nil
}

// Analytics buckets the filtered calls.
func (s *Service) Analytics(ctx context.Context, userID string, q Query) ([]Bucket, Summary, error) {
	calls, err := s.filtered(ctx, userID, q)
	if err != nil {
		return nil, Summary{}, err
	}
	return BuildAnalytics(calls, q.GroupBy), Summarize(calls), nil
}

// Export returns every filtered call for CSV download.
func (s *Service) Export(ctx context.Context, userID string, q Query) ([]Call, error) {
	return s.filtered(ctx, userID, q)
}
