package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/virtual-office/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// KeyByClientIP buckets requests per client address within scope.
func KeyByClientIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":" + common.ClientIP(r)
	}
}

// Handler enforces rate limits before delegating to the next handler.
// Limiter errors fail open.
type Handler struct {
	Limiter   Limiter
	Config    Config
	OnError   func(error)
	OnLimited func(*http.Request)
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		d, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retryAfter := max(int(time.Until(d.ResetAt).Seconds()), 0)
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			if h.OnLimited != nil {
				h.OnLimited(r)
			}
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, try again later", map[string]int{"retryAfterSeconds": retryAfter})
			return
		}
		next.ServeHTTP(w, r)
	})
}
