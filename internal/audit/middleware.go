package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/virtual-office/internal/obs"
)

// HTTPRecorder records unsafe requests after they have been handled.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
	// ResourceIDParam names the chi URL parameter holding the resource id.
	ResourceIDParam string
}

// Middleware records POST, PUT, PATCH and DELETE requests. Reads are not
// audited.
func (r HTTPRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.Service == nil || !mutating(req.Method) {
			next.ServeHTTP(w, req)
			return
		}
		rec := obs.NewStatusRecorder(w)
		next.ServeHTTP(rec, req)

		param := r.ResourceIDParam
		if param == "" {
			param = "id"
		}
		if _, err := r.Service.Record(req.Context(), req, "", "", chi.URLParam(req, param), rec.Status(), nil); err != nil && r.OnError != nil {
			r.OnError(err)
		}
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
