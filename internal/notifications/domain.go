package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type enumerates notification categories.
type Type string

const (
	TypeReportSubmitted     Type = "report_submitted"
	TypeReportReviewed      Type = "report_reviewed"
	TypeRevisionRequested   Type = "revision_requested"
	TypeCommentAdded        Type = "comment_added"
	TypeCommentReply        Type = "comment_reply"
	TypeWeeklyReminder      Type = "weekly_reminder"
	TypeDeadlineApproaching Type = "deadline_approaching"
	TypeOverdueSummary      Type = "overdue_summary"
)

// Notification is the persisted in-app record. It is the source of truth
// for delivery; email is best-effort on top.
type Notification struct {
	ID        int64     `json:"id"`
	Recipient int64     `json:"recipient_id"`
	Type      Type      `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	ReportID  *int64    `json:"report_id,omitempty"`
	CommentID *int64    `json:"comment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is a deferred notification trigger produced by a state transition.
// It is published only after the enclosing transaction commits; the
// dispatcher resolves the recipient at handling time so a handler retry
// sees current assignments.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      Type      `json:"kind"`
	ReportID  int64     `json:"report_id"`
	CommentID *int64    `json:"comment_id,omitempty"`
	ActorID   int64     `json:"actor_id"`
}

// NewEvent builds an Event with a fresh id.
func NewEvent(kind Type, reportID, actorID int64) Event {
	return Event{ID: uuid.New(), Kind: kind, ReportID: reportID, ActorID: actorID}
}

// Publisher delivers committed events to the dispatch queue. Implemented by
// the asynq client; tests substitute an in-memory recorder.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}
