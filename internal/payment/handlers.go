package payment

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/virtual-office/internal/common"
)

// Handler exposes the saved payment method endpoints.
type Handler struct {
	Store *Store
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment methods unavailable", nil)
		return "", false
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return "", false
	}
	return userID, true
}

// List returns the caller's saved cards.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ready(w, r)
	if !ok {
		return
	}
	cards, err := h.Store.List(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load payment methods", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cards})
}

// Add saves a new card.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ready(w, r)
	if !ok {
		return
	}
	var in CardInput
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	card, err := h.Store.Add(r.Context(), userID, in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, card)
}

// Remove deletes a card.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ready(w, r)
	if !ok {
		return
	}
	cards, err := h.Store.Remove(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cards})
}

// SetDefault makes a card the default.
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ready(w, r)
	if !ok {
		return
	}
	cards, err := h.Store.SetDefault(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cards})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCard):
		common.JSONError(w, http.StatusBadRequest, "INVALID_CARD", err.Error(), nil)
	case errors.Is(err, ErrCardNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrLastMethod):
		common.JSONError(w, http.StatusConflict, "LAST_PAYMENT_METHOD", "You cannot remove your only payment method.", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment methods unavailable", nil)
	}
}
