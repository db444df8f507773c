package users

import (
	"time"

	"github.com/gridlog/gridlog/internal/shared"
)

// NotificationPrefs mirrors the per-user notification toggles. The global
// EmailEnabled flag gates everything; per-type flags narrow further.
type NotificationPrefs struct {
	EmailEnabled          bool `json:"email_notifications_enabled"`
	OnReportSubmitted     bool `json:"notify_on_report_submitted"`
	OnCommentAdded        bool `json:"notify_on_comment_added"`
	OnReportReviewed      bool `json:"notify_on_report_reviewed"`
	OnWeeklyReminder      bool `json:"notify_on_weekly_reminder"`
	OnDeadlineApproaching bool `json:"notify_on_deadline_approaching"`
}

// DefaultPrefs returns the opt-in defaults for a new account.
func DefaultPrefs() NotificationPrefs {
	return NotificationPrefs{
		EmailEnabled:          true,
		OnReportSubmitted:     true,
		OnCommentAdded:        true,
		OnReportReviewed:      true,
		OnWeeklyReminder:      true,
		OnDeadlineApproaching: true,
	}
}

// User is the identity record consumed by the workflow engine. Credentials
// and login live in the upstream identity service.
type User struct {
	ID           int64             `json:"id"`
	Email        string            `json:"email"`
	FullName     string            `json:"full_name"`
	Role         shared.Role       `json:"role"`
	IsActive     bool              `json:"is_active"`
	SupervisorID *int64            `json:"supervisor_id,omitempty"`
	Prefs        NotificationPrefs `json:"notification_preferences"`
	CreatedAt    time.Time         `json:"created_at"`
}
