package auth

import (
	"net/http"

	"github.com/noah-isme/virtual-office/internal/common"
)

// Handler exposes the login endpoints.
type Handler struct {
	Service          *Service
	AccessCookieName string
	CookieSecure     bool
	CookieSameSite   http.SameSite
	// OnLogin runs after the session cookie is set.
	OnLogin func(w http.ResponseWriter)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !common.DecodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if h.AccessCookieName != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.AccessCookieName,
			Value:    result.AccessToken,
			Path:     "/",
			Expires:  result.AccessExpiry,
			HttpOnly: true,
			Secure:   h.CookieSecure,
			SameSite: h.CookieSameSite,
		})
	}
	if h.OnLogin != nil {
		h.OnLogin(w)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless so only the
// cookie is cleared.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.AccessCookieName != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.AccessCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.CookieSecure,
			SameSite: h.CookieSameSite,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	username, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	user, found := h.Service.Lookup(username)
	if !found {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": user})
}
