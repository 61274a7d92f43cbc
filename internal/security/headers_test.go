package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serveHeaders(h Headers, secure bool) http.Header {
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	if secure {
		req.TLS = &tls.ConnectionState{}
	} else {
		req.TLS = nil
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr.Result().Header
}

func TestHeadersMiddlewareSetsSecurityHeaders(t *testing.T) {
	headers := serveHeaders(Headers{HSTSMaxAge: 365 * 24 * time.Hour, HSTSSubdomains: true}, true)

	if got := headers.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff header, got %q", got)
	}
	if got := headers.Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("unexpected hsts header %q", got)
	}
	if got := headers.Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}
	if got := headers.Get("Content-Security-Policy"); got != "default-src 'none'; frame-ancestors 'none'" {
		t.Fatalf("unexpected csp %q", got)
	}
}

func TestHeadersMiddlewareDisabled(t *testing.T) {
	headers := serveHeaders(Headers{Disabled: true, HSTSMaxAge: time.Hour}, true)
	if headers.Get("X-Content-Type-Options") != "" || headers.Get("Strict-Transport-Security") != "" {
		t.Fatal("expected no security headers when disabled")
	}
}

func TestHeadersMiddlewareHSTSConditions(t *testing.T) {
	plain := serveHeaders(Headers{HSTSMaxAge: time.Hour}, false)
	if plain.Get("Strict-Transport-Security") != "" {
		t.Fatal("expected no hsts over plain http")
	}
	if plain.Get("X-Frame-Options") != "DENY" {
		t.Fatal("expected frame options")
	}

	unset := serveHeaders(Headers{}, true)
	if unset.Get("Strict-Transport-Security") != "" {
		t.Fatal("expected no hsts without a max age")
	}

	short := serveHeaders(Headers{HSTSMaxAge: time.Hour}, true)
	if got := short.Get("Strict-Transport-Security"); got != "max-age=3600" {
		t.Fatalf("unexpected hsts header %q", got)
	}
}
