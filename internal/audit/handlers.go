package audit

import (
	"net/http"

	"github.com/noah-isme/virtual-office/internal/common"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	Service *Service
}

// List handles GET /admin/audit.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil || h.Service.Client == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	entries, meta, err := h.Service.List(r.Context(), page, perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit entries", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries, "pagination": meta})
}
