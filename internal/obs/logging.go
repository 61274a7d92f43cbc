package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/virtual-office/internal/common"
)

// NewLogger builds the process logger. format is json (default) or console.
func NewLogger(format, level string) zerolog.Logger {
	return newLogger(os.Stdout, format, level)
}

func newLogger(w io.Writer, format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// RequestLogger writes one structured line per request.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware logs 5xx at error, 4xx at warn and probe traffic at debug.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := Route(r)
		if route == "" {
			route = r.URL.Path
		}
		status := rec.Status()
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = l.Logger.Error()
		case status >= http.StatusBadRequest:
			evt = l.Logger.Warn()
		case strings.HasPrefix(r.URL.Path, "/health/") || r.URL.Path == "/metrics":
			evt = l.Logger.Debug()
		default:
			evt = l.Logger.Info()
		}
		evt = evt.
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int64("bytes", rec.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("client_ip", common.ClientIP(r))
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if user, ok := common.UserID(r.Context()); ok && user != "" {
			evt = evt.Str("user_id", user)
		}
		evt.Msg("http_request")
	})
}
