package obs

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type routePatternKey struct{}

// WithRoutePattern pins the route label for requests served outside chi.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns a pinned route label, if any.
func RoutePatternFromContext(ctx context.Context) string {
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}

// Route reports the matched route pattern. chi only knows the pattern once
// routing has happened, so call it after the next handler returns.
func Route(r *http.Request) string {
	if p := RoutePatternFromContext(r.Context()); p != "" {
		return p
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return ""
}

// StatusRecorder captures the status code and body size of a response.
type StatusRecorder struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

// NewStatusRecorder wraps w; the status defaults to 200.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *StatusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *StatusRecorder) Write(p []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(p)
	sr.bytesWritten += int64(n)
	return n, err
}

func (sr *StatusRecorder) Status() int         { return sr.status }
func (sr *StatusRecorder) BytesWritten() int64 { return sr.bytesWritten }

// HTTPObs records request counts, latency and in-flight requests.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	if o.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := NewStatusRecorder(w)
		o.Metrics.InFlight.Inc()
		start := time.Now()
		defer func() {
			o.Metrics.InFlight.Dec()
			route := Route(r)
			if route == "" {
				route = "unmatched"
			}
			o.Metrics.ReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
			o.Metrics.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(start)))
		}()
		next.ServeHTTP(rec, r)
	})
}

// TracingMiddleware opens a server span per request. The span is renamed to
// the route pattern once routing is done.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("virtual-office/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		rec := NewStatusRecorder(w)
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		if route := Route(r); route != "" {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.Int("http.response.status_code", rec.Status()),
		)
		if rec.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.Status()))
		}
	})
}
