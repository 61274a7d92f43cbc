package calls

import (
	"net/http"
	"strings"

	"github.com/noah-isme/virtual-office/internal/common"
)

// Handler exposes the call log endpoints.
type Handler struct {
	Svc *Service
}

func parseQuery(r *http.Request) Query {
	values := r.URL.Query()
	status, _ := ParseStatus(values.Get("status"))
	page, perPage := common.ParsePagination(r, common.DefaultPageSize)
	return Query{
		Days:    ParseRange(values.Get("range")),
		Status:  status,
		Search:  values.Get("q"),
		GroupBy: ParseGroupBy(values.Get("groupBy")),
		Page:    page,
		PerPage: perPage,
	}
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return "", false
	}
	return id, true
}

// List handles GET /calls.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	page, err := h.Svc.List(r.Context(), user, parseQuery(r))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load calls", nil)
		return
	}
	common.JSON(w, http.StatusOK, page)
}

// Analytics handles GET /calls/analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	q := parseQuery(r)
	buckets, summary, err := h.Svc.Analytics(r.Context(), user, q)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load calls", nil)
		return
	}
	if buckets == nil {
		buckets = []Bucket{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"groupBy": q.GroupBy,
		"buckets": buckets,
		"summary": summary,
	})
}

// Export handles GET /calls/export.csv.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	calls, err := h.Svc.Export(r.Context(), user, parseQuery(r))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load calls", nil)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calls_export.csv"`)
	if err := WriteCSV(w, calls); err != nil {
		h.Svc.Log.Error().Err(err).Msg("write calls csv")
	}
}
