package reports

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/shared"
)

// Handler wires HTTP endpoints for the report workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	dashboard *Dashboard
	validate  *validator.Validate
}

// NewHandler constructs a reports HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, dashboard *Dashboard) *Handler {
	return &Handler{logger: logger, service: service, dashboard: dashboard, validate: validator.New()}
}

// MountRoutes attaches report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createDraft)
	r.Get("/mine", h.listMine)
	r.Get("/pending-review", h.listPendingReview)
	r.Get("/dashboard", h.dashboardStats)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.updateContent)
	r.Delete("/{id}", h.deleteDraft)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/review", h.review)
	r.Post("/{id}/request-revision", h.requestRevision)
	r.Post("/{id}/reset-to-draft", h.resetToDraft)
	r.Get("/{id}/comments", h.listComments)
	r.Post("/{id}/comments", h.addComment)
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	report, err := h.service.CreateOrGetDraft(r.Context(), actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, report)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, report)
}

type contentRequest struct {
	Accomplishments string `json:"accomplishments" validate:"max=3000"`
	GoalsNextWeek   string `json:"goals_next_week" validate:"max=2000"`
	Blockers        string `json:"blockers" validate:"max=1500"`
	SupportNeeded   string `json:"support_needed" validate:"max=1000"`
	ProgressRating  string `json:"progress_rating" validate:"omitempty,oneof=on_track at_risk behind completed_early"`
	AdditionalNotes string `json:"additional_notes" validate:"max=1000"`
}

func (h *Handler) updateContent(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.service.UpdateContent(r.Context(), id, Content{
		Accomplishments: req.Accomplishments,
		GoalsNextWeek:   req.GoalsNextWeek,
		Blockers:        req.Blockers,
		SupportNeeded:   req.SupportNeeded,
		ProgressRating:  ProgressRating(req.ProgressRating),
		AdditionalNotes: req.AdditionalNotes,
	}, actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(r.Context(), id, actor); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Submit)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Review)
}

func (h *Handler) resetToDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ResetToDraft)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, actor shared.Actor) (Report, error)) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	report, err := op(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, report)
}

type revisionRequest struct {
	Comment string `json:"comment" validate:"max=2000"`
}

func (h *Handler) requestRevision(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	var req revisionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.service.RequestRevision(r.Context(), id, req.Comment, actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.ListMine(r.Context(), actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) listPendingReview(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.ListPendingReview(r.Context(), actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	out, err := h.service.Comments(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, out)
}

type commentRequest struct {
	Body     string `json:"body" validate:"required,max=2000"`
	ParentID *int64 `json:"parent_id"`
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	comment, err := h.service.AddComment(r.Context(), id, req.ParentID, req.Body, actor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, comment)
}

func (h *Handler) reportID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, "invalid report id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDuplicateReport),
		errors.Is(err, ErrReportLocked),
		errors.Is(err, ErrAlreadyDraft),
		errors.Is(err, periods.ErrNoActivePeriod):
		shared.RespondErrorStatus(w, http.StatusConflict, err.Error())
	default:
		shared.RespondError(w, err)
	}
}
