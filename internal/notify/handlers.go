package notify

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/virtual-office/internal/common"
)

const defaultInboxLimit = 20

// Handler serves the user notification panel and the admin composer.
type Handler struct {
	Store *Store
}

type sendRequest struct {
	Kind      Kind     `json:"kind" validate:"omitempty,oneof=system promo mail call billing"`
	Title     string   `json:"title" validate:"required,max=200"`
	Body      string   `json:"body" validate:"required,max=4000"`
	Target    Target   `json:"target" validate:"omitempty,oneof=ALL GROUP"`
	Usernames []string `json:"usernames"`
	Users     string   `json:"users"`
}

type sentView struct {
	Notification
	Recipients string `json:"recipients"`
}

// Inbox handles GET /notifications.
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	limit := common.QueryInt(r, "limit", defaultInboxLimit)
	items, unread, err := h.Store.Inbox(r.Context(), user, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "unread": unread})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	if err := h.Store.MarkRead(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	if err := h.Store.MarkAllRead(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sent handles GET /admin/notifications.
func (h *Handler) Sent(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, common.DefaultPageSize)
	items, meta, err := h.Store.Sent(r.Context(), r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]sentView, 0, len(items))
	for _, n := range items {
		views = append(views, sentView{Notification: n, Recipients: n.Recipients()})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views, "pagination": meta})
}

// Send handles POST /admin/notifications.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !common.DecodeAndValidate(w, r, &req) {
		return
	}
	usernames := req.Usernames
	if len(usernames) == 0 && req.Users != "" {
		usernames = ParseUsernames(req.Users)
	}
	sender := "Admin User"
	if user, ok := common.UserID(r.Context()); ok {
		sender = user
	}
	n, err := h.Store.Send(r.Context(), Notification{
		Kind:      req.Kind,
		Title:     req.Title,
		Body:      req.Body,
		Target:    req.Target,
		Usernames: usernames,
		SentBy:    sender,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, sentView{Notification: n, Recipients: n.Recipients()})
}

// Delete handles DELETE /admin/notifications/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInvalid):
		common.JSONError(w, http.StatusBadRequest, "INVALID_NOTIFICATION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "notifications unavailable", nil)
	}
}
