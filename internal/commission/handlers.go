package commission

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/virtual-office/internal/common"
)

// Handler exposes the admin commission endpoints.
type Handler struct {
	Ledger *Ledger
}

type payRequest struct {
	IDs  []string `json:"ids" validate:"required,min=1,dive,required"`
	TxID string   `json:"txid" validate:"max=64"`
}

func (h *Handler) filtered(r *http.Request) []Row {
	status, _ := ParseStatus(r.URL.Query().Get("status"))
	return Filter(h.Ledger.Rows(), r.URL.Query().Get("q"), status)
}

// List handles GET /admin/commissions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows := h.filtered(r)
	page, perPage := common.ParsePagination(r, common.DefaultPageSize)
	start, end, meta := common.Paginate(len(rows), page, perPage)
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows[start:end],
		"pagination": meta,
		"totals":     Summarize(rows),
	})
}

// Get handles GET /admin/commissions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	row, err := h.Ledger.Get(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, row)
}

// Pay handles POST /admin/commissions/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if !common.DecodeAndValidate(w, r, &req) {
		return
	}
	rows, err := h.Ledger.MarkPaid(req.IDs, req.TxID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Unpay handles POST /admin/commissions/{id}/unpay.
func (h *Handler) Unpay(w http.ResponseWriter, r *http.Request) {
	row, err := h.Ledger.MarkUnpaid(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, row)
}

// Export handles GET /admin/commissions/export.csv.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="commissions.csv"`)
	_ = WriteCSV(w, h.filtered(r))
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "commissions unavailable", nil)
}
