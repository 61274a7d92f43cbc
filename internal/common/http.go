package common

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ClientIP returns the host part of RemoteAddr. The API mounts chi's RealIP
// middleware first, so proxy headers are already folded in.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// QueryInt reads a positive integer query parameter, returning def when it
// is missing, malformed or not positive.
func QueryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
