package reminder

import (
	"net/http"
	"time"

	"github.com/noah-isme/virtual-office/internal/common"
)

// Handler exposes the admin due-soon list and the manual reminder trigger.
type Handler struct {
	Clients   func(now time.Time) []DueClient
	Queue     Enqueuer
	Usernames []string
	Window    int
	Now       func() time.Time
}

type runRequest struct {
	Usernames  []string `json:"usernames" validate:"omitempty,dive,required"`
	WindowDays int      `json:"windowDays" validate:"omitempty,min=1,max=60"`
}

func (h *Handler) window(r *http.Request) int {
	def := h.Window
	if def <= 0 {
		def = DefaultWindowDays
	}
	return common.QueryInt(r, "days", def)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// List handles GET /admin/reminders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	items := Search(DueSoon(h.Clients(now), now, h.window(r)), r.URL.Query().Get("q"))
	page, perPage := common.ParsePagination(r, common.DefaultPageSize)
	start, end, meta := common.Paginate(len(items), page, perPage)
	common.JSON(w, http.StatusOK, map[string]any{"data": items[start:end], "pagination": meta})
}

// Run handles POST /admin/reminders/run.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Queue == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "task queue not configured", nil)
		return
	}
	var req runRequest
	if r.ContentLength != 0 && !common.DecodeAndValidate(w, r, &req) {
		return
	}
	p := Payload{Usernames: req.Usernames, WindowDays: req.WindowDays}
	if len(p.Usernames) == 0 {
		p.Usernames = h.Usernames
	}
	if p.WindowDays == 0 {
		p.WindowDays = h.Window
	}
	info, err := Enqueue(r.Context(), h.Queue, p)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not enqueue reminders", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"taskId": info.ID, "queue": info.Queue})
}
