package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewHTTPMetrics("virtual_office", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/billing/invoices/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/billing/invoices/INV-1", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/billing/invoices/{id}", "204")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))

	again := NewHTTPMetrics("virtual_office", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestRouteHonoursPinnedPattern(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	require.Equal(t, "", Route(req))
	req = req.WithContext(WithRoutePattern(req.Context(), "/health/ready"))
	require.Equal(t, "/health/ready", Route(req))
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "debug")

	r := chi.NewRouter()
	r.Use(RequestLogger{Logger: logger}.Middleware)
	r.Get("/calls", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/calls", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	require.Equal(t, "info", first["level"])
	require.Equal(t, "/calls", first["route"])
	require.Equal(t, "error", second["level"])
	require.Equal(t, float64(http.StatusBadGateway), second["status"])
}

func TestDomainMetricsRegisterOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	MustRegisterDomainMetrics("virtual_office", registry)
	MustRegisterDomainMetrics("virtual_office", registry)

	BillingQuotesTotal.WithLabelValues("twelveMonth", "applied").Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(BillingQuotesTotal.WithLabelValues("twelveMonth", "applied")))
	RemindersCreatedTotal.Add(2)
	require.Equal(t, float64(2), testutil.ToFloat64(RemindersCreatedTotal))
}
