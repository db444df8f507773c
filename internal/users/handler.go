package users

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gridlog/gridlog/internal/shared"
)

// Handler exposes identity and preference endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a users HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Put("/me/preferences", h.updatePrefs)
	r.Get("/team", h.team)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	user, err := h.service.Get(r.Context(), actor.ID)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, user)
}

type prefsRequest struct {
	EmailEnabled          *bool `json:"email_notifications_enabled" validate:"required"`
	OnReportSubmitted     *bool `json:"notify_on_report_submitted" validate:"required"`
	OnCommentAdded        *bool `json:"notify_on_comment_added" validate:"required"`
	OnReportReviewed      *bool `json:"notify_on_report_reviewed" validate:"required"`
	OnWeeklyReminder      *bool `json:"notify_on_weekly_reminder" validate:"required"`
	OnDeadlineApproaching *bool `json:"notify_on_deadline_approaching" validate:"required"`
}

func (h *Handler) updatePrefs(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req prefsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondErrorStatus(w, http.StatusBadRequest, "all preference flags are required")
		return
	}
	user, err := h.service.UpdatePrefs(r.Context(), actor, NotificationPrefs{
		EmailEnabled:          *req.EmailEnabled,
		OnReportSubmitted:     *req.OnReportSubmitted,
		OnCommentAdded:        *req.OnCommentAdded,
		OnReportReviewed:      *req.OnReportReviewed,
		OnWeeklyReminder:      *req.OnWeeklyReminder,
		OnDeadlineApproaching: *req.OnDeadlineApproaching,
	})
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) team(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if actor.Role != shared.RoleSupervisor && !actor.IsAdmin() {
		shared.RespondErrorStatus(w, http.StatusForbidden, "supervisor role required")
		return
	}
	team, err := h.service.Team(r.Context(), actor.ID)
	if err != nil {
		h.logger.Error("list team", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, team)
}
