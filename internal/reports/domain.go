package reports

import (
	"errors"
	"strings"
	"time"

	"github.com/gridlog/gridlog/internal/shared"
)

// Status enumerates the report lifecycle states. Absence of a row is the
// virtual "not started" state; it only exists as a derived dashboard count,
// never as a persisted status.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusRevisionRequested Status = "revision_requested"
	StatusSubmitted         Status = "submitted"
	StatusReviewed          Status = "reviewed"
)

// ProgressRating enumerates the weekly self-assessment values.
type ProgressRating string

const (
	RatingOnTrack        ProgressRating = "on_track"
	RatingAtRisk         ProgressRating = "at_risk"
	RatingBehind         ProgressRating = "behind"
	RatingCompletedEarly ProgressRating = "completed_early"
)

// ValidRating reports whether r is a known rating or empty.
func ValidRating(r ProgressRating) bool {
	switch r {
	case "", RatingOnTrack, RatingAtRisk, RatingBehind, RatingCompletedEarly:
		return true
	default:
		return false
	}
}

// Content field length bounds.
const (
	MaxAccomplishments = 3000
	MaxGoalsNextWeek   = 2000
	MaxBlockers        = 1500
	MaxSupportNeeded   = 1000
	MaxAdditionalNotes = 1000
	MaxCommentBody     = 2000
)

var (
	// ErrInvalidTransition indicates a state machine precondition failed.
	ErrInvalidTransition = errors.New("reports: invalid status transition")
	// ErrDuplicateReport indicates a report already exists for (employee, period).
	ErrDuplicateReport = errors.New("reports: report already exists for this period")
	// ErrReportLocked indicates the report is not editable in its current
	// state or its period is closed.
	ErrReportLocked = errors.New("reports: report is locked for editing")
	// ErrAlreadyDraft indicates a no-op admin reset.
	ErrAlreadyDraft = errors.New("reports: report is already a draft")
)

// Content holds the employee-authored fields of a weekly report.
type Content struct {
	Accomplishments string         `json:"accomplishments"`
	GoalsNextWeek   string         `json:"goals_next_week"`
	Blockers        string         `json:"blockers"`
	SupportNeeded   string         `json:"support_needed"`
	ProgressRating  ProgressRating `json:"progress_rating"`
	AdditionalNotes string         `json:"additional_notes"`
}

// Validate enforces length bounds and rating membership.
func (c Content) Validate() error {
	fields := map[string]string{}
	check := func(name, value string, max int) {
		if len(value) > max {
			fields[name] = "exceeds maximum length"
		}
	}
	check("accomplishments", c.Accomplishments, MaxAccomplishments)
	check("goals_next_week", c.GoalsNextWeek, MaxGoalsNextWeek)
	check("blockers", c.Blockers, MaxBlockers)
	check("support_needed", c.SupportNeeded, MaxSupportNeeded)
	check("additional_notes", c.AdditionalNotes, MaxAdditionalNotes)
	if !ValidRating(c.ProgressRating) {
		fields["progress_rating"] = "unknown rating"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}

// ValidateForSubmit checks the submit preconditions: accomplishments,
// goals, and a progress rating must all be present.
func (c Content) ValidateForSubmit() error {
	fields := map[string]string{}
	if strings.TrimSpace(c.Accomplishments) == "" {
		fields["accomplishments"] = "required"
	}
	if strings.TrimSpace(c.GoalsNextWeek) == "" {
		fields["goals_next_week"] = "required"
	}
	if c.ProgressRating == "" {
		fields["progress_rating"] = "required"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}

// Report is an employee's weekly status report within one period.
type Report struct {
	ID         int64  `json:"id"`
	EmployeeID int64  `json:"employee_id"`
	PeriodID   int64  `json:"period_id"`
	Status     Status `json:"status"`
	Content
	IsLate      bool       `json:"is_late"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Editable reports whether the employee may change content in the current
// state. Period closure is checked separately because it needs the period.
func (r Report) Editable() bool {
	return r.Status == StatusDraft || r.Status == StatusRevisionRequested
}

// canTransition encodes the state machine edges. Reviewed is terminal;
// the admin-only reset to draft bypasses this table deliberately.
func canTransition(from, to Status) bool {
	switch from {
	case StatusDraft, StatusRevisionRequested:
		return to == StatusSubmitted
	case StatusSubmitted:
		return to == StatusReviewed || to == StatusRevisionRequested
	default:
		return false
	}
}

// Comment is a remark on a report. One level of threading: a comment whose
// parent already has a parent is rejected.
type Comment struct {
	ID        int64     `json:"id"`
	ReportID  int64     `json:"report_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
