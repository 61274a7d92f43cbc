package health

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/virtual-office/internal/common"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness. The API clears it when shutdown begins so load
// balancers drain traffic before the listener closes.
func SetReady(v bool) { ready.Store(v) }

// Probe checks a single dependency.
type Probe func(ctx context.Context) error

// RedisProbe pings the given client.
func RedisProbe(client redis.UniversalClient) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe and reports 503 if any fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSONError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "server is shutting down", nil)
		return
	}
	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := h.Probes[name](ctx)
		cancel()
		if err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.Timeout
}
