package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/obs"
)

// DefaultMaxEntries bounds the trail kept in Redis.
const DefaultMaxEntries = 1000

// Entry is one recorded admin action.
type Entry struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Role       string         `json:"role,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	Status     int            `json:"status"`
	IP         string         `json:"ip,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	At         time.Time      `json:"at"`
}

// Service appends entries to a capped Redis list, newest first.
type Service struct {
	Client     *redis.Client
	Prefix     string
	MaxEntries int64
	Log        zerolog.Logger
	Now        func() time.Time
}

func (s *Service) key() string { return s.Prefix + "audit:entries" }

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) max() int64 {
	if s.MaxEntries <= 0 {
		return DefaultMaxEntries
	}
	return s.MaxEntries
}

// Record builds an entry for req and stores it.
func (s *Service) Record(ctx context.Context, req *http.Request, action, resource, resourceID string, status int, metadata map[string]any) (Entry, error) {
	if s == nil || s.Client == nil {
		return Entry{}, errors.New("audit: store not configured")
	}
	if req == nil {
		return Entry{}, errors.New("audit: request is required")
	}
	route := obs.Route(req)
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	actor, _ := common.UserID(req.Context())
	if actor == "" {
		actor = "anonymous"
	}
	role, _ := common.Role(req.Context())

	entry := Entry{
		ID:         uuid.NewString(),
		Actor:      actor,
		Role:       role,
		Action:     buildAction(action, req.Method, route),
		Resource:   buildResource(resource, route),
		ResourceID: strings.TrimSpace(resourceID),
		Method:     req.Method,
		Path:       req.URL.Path,
		Status:     status,
		IP:         common.ClientIP(req),
		RequestID:  strings.TrimSpace(req.Header.Get("X-Request-ID")),
		Metadata:   metadata,
		At:         s.now(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, err
	}
	_, err = s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, s.key(), raw)
		p.LTrim(ctx, s.key(), 0, s.max()-1)
		return nil
	})
	return entry, err
}

// List returns a page of entries, newest first. Unreadable entries are skipped.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Entry, common.Pagination, error) {
	total, err := s.Client.LLen(ctx, s.key()).Result()
	if err != nil {
		return nil, common.Pagination{}, err
	}
	start, end, meta := common.Paginate(int(total), page, perPage)
	if start >= end {
		return []Entry{}, meta, nil
	}
	raws, err := s.Client.LRange(ctx, s.key(), int64(start), int64(end-1)).Result()
	if err != nil {
		return nil, common.Pagination{}, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.Log.Warn().Err(err).Msg("skip unreadable audit entry")
			continue
		}
		out = append(out, e)
	}
	return out, meta, nil
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

func buildResource(resource, route string) string {
	if trimmed := strings.TrimSpace(resource); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, ".")
}
