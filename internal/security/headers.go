package security

import (
	"net/http"
	"strconv"
	"time"
)

// apiHeaders apply to every reply. The API only serves JSON and CSV, so
// framing, script execution and caching are refused outright.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
}

// Headers sets the API response headers. Strict-Transport-Security is only
// sent over TLS and only when HSTSMaxAge is positive.
type Headers struct {
	Disabled       bool
	HSTSMaxAge     time.Duration
	HSTSSubdomains bool
}

func (h Headers) hsts() string {
	secs := int64(h.HSTSMaxAge / time.Second)
	if secs <= 0 {
		return ""
	}
	v := "max-age=" + strconv.FormatInt(secs, 10)
	if h.HSTSSubdomains {
		v += "; includeSubDomains"
	}
	return v
}

func (h Headers) Middleware(next http.Handler) http.Handler {
	if h.Disabled {
		return next
	}
	hsts := h.hsts()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		for _, kv := range apiHeaders {
			hdr.Set(kv[0], kv[1])
		}
		if hsts != "" && r.TLS != nil {
			hdr.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
