package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idempotency rejects replays of write requests carrying the same
// Idempotency-Key for the same user within TTL. A key is only kept when the
// handler succeeds; failed requests may be retried with the same key.
type Idempotency struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func (i Idempotency) key(user, header string) string {
	sum := sha256.Sum256([]byte(user + "|" + header))
	return i.Prefix + "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency on requests that send the header.
func (i Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.Client == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		user, _ := UserID(r.Context())
		key := i.key(user, header)
		ok, err := i.Client.SetNX(r.Context(), key, "1", ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if sw.status < 200 || sw.status > 299 {
			_ = i.Client.Del(context.WithoutCancel(r.Context()), key).Err()
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
