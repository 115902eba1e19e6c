package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starford/incremental/internal/interval"
)

// Handler serves the item and interval routes.
type Handler struct {
	sched  Scheduler
	custom []int
	now    func() time.Time
}

// ListItems handles GET /items.
//
//	@Summary	List scheduled items in review order
//	@Tags		items
//	@Produce	json
//	@Success	200	{object}	ItemListResponse
//	@Router		/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.sched.Items(r.Context())
	if err != nil {
		writeError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// DueItems handles GET /items/due.
//
//	@Summary	List items due now
//	@Tags		items
//	@Produce	json
//	@Success	200	{object}	ItemListResponse
//	@Router		/items/due [get]
func (h *Handler) DueItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.sched.Due(r.Context(), h.now())
	if err != nil {
		writeError(w, "due items", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// SetPriority handles POST /items/priority.
//
//	@Summary	Schedule a note from its priority
//	@Tags		items
//	@Accept		json
//	@Produce	json
//	@Param		body	body		PriorityRequest	true	"Item and priority"
//	@Success	200		{object}	models.Item
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Failure	503		{object}	errResponse
//	@Router		/items/priority [post]
func (h *Handler) SetPriority(w http.ResponseWriter, r *http.Request) {
	var req PriorityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.Priority == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("id and priority are required"))
		return
	}
	item, err := h.sched.SetPriority(r.Context(), req.ID, *req.Priority)
	if err != nil {
		writeError(w, "set priority", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ChooseInterval handles POST /items/interval.
//
//	@Summary	Reschedule an item a fixed number of days out
//	@Tags		items
//	@Accept		json
//	@Produce	json
//	@Param		body	body		IntervalRequest	true	"Item and days"
//	@Success	200		{object}	models.Item
//	@Success	204		"Note missing or not scheduled"
//	@Failure	400		{object}	errResponse
//	@Failure	503		{object}	errResponse
//	@Router		/items/interval [post]
func (h *Handler) ChooseInterval(w http.ResponseWriter, r *http.Request) {
	var req IntervalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	item, err := h.sched.ChooseInterval(r.Context(), req.ID, req.Days)
	if err != nil {
		writeError(w, "choose interval", err)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// MarkDone handles POST /items/done.
//
//	@Summary	Retire an item from review
//	@Tags		items
//	@Accept		json
//	@Param		body	body	DoneRequest	true	"Item"
//	@Success	204
//	@Failure	503	{object}	errResponse
//	@Router		/items/done [post]
func (h *Handler) MarkDone(w http.ResponseWriter, r *http.Request) {
	var req DoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	if err := h.sched.MarkDone(r.Context(), req.ID); err != nil {
		writeError(w, "mark done", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewInterval handles GET /intervals/preview.
//
//	@Summary	Preview the interval a priority maps to
//	@Tags		intervals
//	@Produce	json
//	@Param		priority	query		number	true	"Priority 0-100"
//	@Success	200			{object}	interval.Preview
//	@Failure	400			{object}	errResponse
//	@Router		/intervals/preview [get]
func (h *Handler) PreviewInterval(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("priority")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'priority' is required"))
		return
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("priority must be a number"))
		return
	}
	preview, err := h.sched.Preview(p)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// Presets handles GET /intervals/presets.
//
//	@Summary	List priority presets and custom interval choices
//	@Tags		intervals
//	@Produce	json
//	@Success	200	{object}	PresetsResponse
//	@Router		/intervals/presets [get]
func (h *Handler) Presets(w http.ResponseWriter, _ *http.Request) {
	custom := h.custom
	if custom == nil {
		custom = []int{}
	}
	writeJSON(w, http.StatusOK, PresetsResponse{Presets: interval.Presets(), CustomIntervals: custom})
}

// QueueHandler serves the review session routes.
type QueueHandler struct {
	reviews Reviews
	now     func() time.Time
}

func (q *QueueHandler) state() QueueResponse {
	resp := QueueResponse{Remaining: q.reviews.Len()}
	if cur, ok := q.reviews.Current(); ok {
		resp.Current = &cur
	}
	return resp
}

// Current handles GET /queue/current.
func (q *QueueHandler) Current(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, q.state())
}

// Advance handles POST /queue/advance. Without an id the current card is
// advanced past.
func (q *QueueHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := q.reviews.AdvancePastCurrent(r.Context(), req.ID, req.Completed); err != nil {
		writeError(w, "advance queue", err)
		return
	}
	writeJSON(w, http.StatusOK, q.state())
}

// Refresh handles POST /queue/refresh.
func (q *QueueHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := q.reviews.Refresh(r.Context(), q.now()); err != nil {
		writeError(w, "refresh queue", err)
		return
	}
	writeJSON(w, http.StatusOK, q.state())
}

