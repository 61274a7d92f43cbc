package promotion

import (
	"errors"
	"math/rand/v2"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/pricing"
)

// Handler exposes the admin promotion endpoints.
type Handler struct {
	Svc *Service
}

type promoView struct {
	Promo
	Targeting string `json:"targeting"`
}

type previewRequest struct {
	Code          string          `json:"code" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Username      string          `json:"username"`
	NewUser       bool            `json:"newUser"`
	LifetimeSpend decimal.Decimal `json:"lifetimeSpend"`
}

func view(p Promo) promoView { return promoView{Promo: p, Targeting: Targeting(p)} }

// List handles GET /admin/promotions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, common.DefaultPageSize)
	res, err := h.Svc.List(r.Context(), r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]promoView, 0, len(res.Items))
	for _, p := range res.Items {
		items = append(items, view(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": res.Pagination})
}

// Create handles POST /admin/promotions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	p, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, view(p))
}

// Update handles PUT /admin/promotions/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !common.DecodeAndValidate(w, r, &in) {
		return
	}
	p, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, view(p))
}

// Delete handles DELETE /admin/promotions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle handles POST /admin/promotions/{id}/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.ToggleActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, view(p))
}

// GenerateCode handles GET /admin/promotions/generate-code.
func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	common.JSON(w, http.StatusOK, map[string]string{"code": GenerateCode(rng)})
}

// Preview handles POST /admin/promotions/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !common.DecodeAndValidate(w, r, &req) {
		return
	}
	p, discount, err := h.Svc.Preview(r.Context(), req.Code, Audience{
		Username:      req.Username,
		NewUser:       req.NewUser,
		LifetimeSpend: req.LifetimeSpend,
	}, req.Amount)
	if errors.Is(err, ErrNotFound) {
		writeError(w, err)
		return
	}
	resp := map[string]any{
		"code":     p.Code,
		"eligible": err == nil,
		"discount": pricing.Fixed(discount),
	}
	if err != nil {
		if !isEligibilityError(err) {
			writeError(w, err)
			return
		}
		resp["reason"] = err.Error()
	}
	common.JSON(w, http.StatusOK, resp)
}

func isEligibilityError(err error) bool {
	for _, target := range []error{ErrInactive, ErrNotStarted, ErrExpired, ErrUsageLimitReached, ErrNotInAudience, ErrMinimumSpendUnmet} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrDuplicateCode):
		common.JSONError(w, http.StatusConflict, "DUPLICATE_CODE", err.Error(), nil)
	case errors.Is(err, ErrInvalid):
		common.JSONError(w, http.StatusBadRequest, "INVALID_PROMOTION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotions unavailable", nil)
	}
}
