package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridlog/gridlog/internal/shared"
)

// Handler serves the admin audit timeline.
type Handler struct {
	service *Service
}

// NewHandler constructs an audit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes attaches the timeline endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if !shared.Allow(actor, shared.ActionAuditView, shared.Target{}) {
		shared.RespondErrorStatus(w, http.StatusForbidden, "admin role required")
		return
	}
	filters, err := parseFilters(r)
	if err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, result)
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Action: q.Get("action"),
		Entity: q.Get("entity"),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, err
		}
		filters.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, err
		}
		filters.To = t
	}
	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filters, err
		}
		filters.ActorID = &id
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filters, err
		}
		filters.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return filters, err
		}
		filters.PageSize = size
	}
	return filters, nil
}
