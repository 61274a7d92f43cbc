package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/virtual-office/internal/common"
)

// CSRF applies the double-submit check to requests authenticated by the
// session cookie. Bearer requests and requests without the session cookie
// are not exposed to cross-site forgery and pass through.
type CSRF struct {
	Header        string
	Cookie        string
	SessionCookie string
	Secure        bool
}

func (c CSRF) header() string {
	if h := strings.TrimSpace(c.Header); h != "" {
		return h
	}
	return "X-CSRF-Token"
}

func (c CSRF) cookie() string {
	if v := strings.TrimSpace(c.Cookie); v != "" {
		return v
	}
	return "vo_csrf"
}

// Issue sets a fresh token cookie readable by the dashboard script.
func (c CSRF) Issue(w http.ResponseWriter) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie(),
		Value:    token,
		Path:     "/",
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

// Middleware enforces that unsafe cookie-authenticated requests echo the
// token cookie in the header.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		if c.SessionCookie != "" {
			if _, err := r.Cookie(c.SessionCookie); err != nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := strings.TrimSpace(r.Header.Get(c.header()))
		cookie, err := r.Cookie(c.cookie())
		if token == "" || err != nil || cookie.Value == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_MISSING", "missing csrf token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_INVALID", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
