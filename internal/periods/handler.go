package periods

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gridlog/gridlog/internal/shared"
)

// Handler wires HTTP endpoints for reporting periods.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a periods HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/current", h.current)
	r.Post("/{id}/close", h.close)
	r.Post("/{id}/reopen", h.reopen)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	out, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.Current(r.Context())
	if errors.Is(err, ErrNoActivePeriod) {
		shared.RespondErrorStatus(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, period)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.setClosed(w, r, true)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	h.setClosed(w, r, false)
}

func (h *Handler) setClosed(w http.ResponseWriter, r *http.Request, closed bool) {
	actor, _ := shared.ActorFromContext(r.Context())
	action := shared.ActionPeriodClose
	if !closed {
		action = shared.ActionPeriodReopen
	}
	if !shared.Allow(actor, action, shared.Target{}) {
		shared.RespondErrorStatus(w, http.StatusForbidden, "admin role required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, "invalid period id")
		return
	}
	var period Period
	if closed {
		period, err = h.service.Close(r.Context(), id, actor)
	} else {
		period, err = h.service.Reopen(r.Context(), id, actor)
	}
	switch {
	case errors.Is(err, ErrAlreadyClosed), errors.Is(err, ErrNotClosed):
		shared.RespondErrorStatus(w, http.StatusConflict, err.Error())
	case err != nil:
		shared.RespondError(w, err)
	default:
		shared.RespondJSON(w, http.StatusOK, period)
	}
}
