package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/shared"
	"github.com/gridlog/gridlog/internal/users"
)

type periodSource interface {
	Current(ctx context.Context) (periods.Period, error)
}

type repository interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	ListForUser(ctx context.Context, recipientID int64, unreadOnly bool, limit, offset int) ([]Notification, error)
	UnreadCount(ctx context.Context, recipientID int64) (int, error)
	MarkRead(ctx context.Context, id, recipientID int64) error
	MarkAllRead(ctx context.Context, recipientID int64) error
	GetReportRef(ctx context.Context, reportID int64) (ReportRef, error)
	ListPendingEmployees(ctx context.Context, periodID int64) ([]PendingReport, error)
	OverdueCountsBySupervisor(ctx context.Context, periodID int64) ([]OverdueCount, error)
}

// Service consumes commit-confirmed events and fans them out to recipients
// according to their preference flags. Dispatch runs at-least-once: a retry
// may duplicate an informational notification, never a state change.
type Service struct {
	repo      repository
	directory users.Directory
	mailer    Mailer
	audit     shared.AuditSink
	periods   periodSource
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the dispatcher.
func NewService(repo repository, directory users.Directory, mailer Mailer, audit shared.AuditSink, periodSvc periodSource, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		mailer:    mailer,
		audit:     audit,
		periods:   periodSvc,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Dispatch routes one committed event. A missing recipient (employee with
// no assigned supervisor) is a no-op, not an error.
func (s *Service) Dispatch(ctx context.Context, event Event) error {
	ref, err := s.repo.GetReportRef(ctx, event.ReportID)
	if err != nil {
		return err
	}
	switch event.Kind {
	case TypeReportSubmitted:
		if ref.SupervisorID == nil {
			return nil
		}
		employee, err := s.directory.Get(ctx, ref.EmployeeID)
		if err != nil {
			return err
		}
		return s.deliver(ctx, *ref.SupervisorID, event,
			func(p users.NotificationPrefs) bool { return p.OnReportSubmitted },
			fmt.Sprintf("%s submitted their weekly report", employee.FullName),
			"Report Submitted",
			fmt.Sprintf("%s has submitted their weekly report for the period ending %s.",
				employee.FullName, ref.PeriodEnd.Format("2006-01-02")))
	case TypeReportReviewed:
		return s.deliver(ctx, ref.EmployeeID, event,
			func(p users.NotificationPrefs) bool { return p.OnReportReviewed },
			"Your report has been reviewed",
			"Report Reviewed",
			fmt.Sprintf("Your weekly report for the period ending %s has been marked as reviewed by your supervisor.",
				ref.PeriodEnd.Format("2006-01-02")))
	case TypeRevisionRequested:
		return s.deliver(ctx, ref.EmployeeID, event,
			func(p users.NotificationPrefs) bool { return p.OnReportReviewed },
			"Your supervisor requested a revision",
			"Revision Requested",
			fmt.Sprintf("Your supervisor requested changes to your weekly report for the period ending %s.",
				ref.PeriodEnd.Format("2006-01-02")))
	case TypeCommentAdded, TypeCommentReply:
		// Employee comments notify the supervisor; anyone else notifies
		// the employee.
		var recipient int64
		if event.ActorID == ref.EmployeeID {
			if ref.SupervisorID == nil {
				return nil
			}
			recipient = *ref.SupervisorID
		} else {
			recipient = ref.EmployeeID
		}
		return s.deliver(ctx, recipient, event,
			func(p users.NotificationPrefs) bool { return p.OnCommentAdded },
			"New comment on your report",
			"New Comment",
			fmt.Sprintf("A new comment has been added to the report for the period ending %s.",
				ref.PeriodEnd.Format("2006-01-02")))
	default:
		s.logger.Warn("unknown notification event kind", slog.String("kind", string(event.Kind)))
		return nil
	}
}

// deliver applies the preference gate, persists the in-app record, and
// attempts a best-effort email.
func (s *Service) deliver(ctx context.Context, recipientID int64, event Event, typeEnabled func(users.NotificationPrefs) bool, message, subject, body string) error {
	recipient, err := s.directory.Get(ctx, recipientID)
	if err != nil {
		return err
	}
	if !recipient.Prefs.EmailEnabled || !typeEnabled(recipient.Prefs) {
		return nil
	}
	reportID := event.ReportID
	if _, err := s.repo.Insert(ctx, Notification{
		Recipient: recipientID,
		Type:      event.Kind,
		Message:   message,
		ReportID:  &reportID,
		CommentID: event.CommentID,
	}); err != nil {
		return err
	}
	s.email(ctx, recipient, subject, body)
	return nil
}

// email attempts delivery and swallows failures.
func (s *Service) email(ctx context.Context, recipient users.User, subject, body string) {
	if s.mailer == nil {
		return
	}
	greeting := fmt.Sprintf("Hello %s,\n\n%s\n\nBest,\nGridlog Team", recipient.FullName, body)
	if err := s.mailer.Send(ctx, recipient.Email, subject, greeting); err != nil {
		s.logger.Warn("email delivery failed",
			slog.String("to", recipient.Email),
			slog.String("subject", subject),
			slog.Any("error", err))
	}
}

// ListForUser returns the actor's inbox.
func (s *Service) ListForUser(ctx context.Context, actor shared.Actor, unreadOnly bool, limit, offset int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForUser(ctx, actor.ID, unreadOnly, limit, offset)
}

// UnreadCount returns the actor's unread total.
func (s *Service) UnreadCount(ctx context.Context, actor shared.Actor) (int, error) {
	return s.repo.UnreadCount(ctx, actor.ID)
}

// MarkRead flags one of the actor's notifications read.
func (s *Service) MarkRead(ctx context.Context, actor shared.Actor, id int64) error {
	return s.repo.MarkRead(ctx, id, actor.ID)
}

// MarkAllRead flags the actor's whole inbox read.
func (s *Service) MarkAllRead(ctx context.Context, actor shared.Actor) error {
	return s.repo.MarkAllRead(ctx, actor.ID)
}
