package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gridlog/gridlog/internal/notifications"
	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/shared"
	"github.com/gridlog/gridlog/internal/users"
)

// periodSource is the slice of the period manager the state machine needs.
type periodSource interface {
	Current(ctx context.Context) (periods.Period, error)
}

// Service is the report state machine. Every transition is one atomic
// read-validate-write under the report's exclusive row lock; notification
// events are returned by the transaction and published only after commit.
type Service struct {
	repo      Repository
	directory users.Directory
	periods   periodSource
	sanitizer Sanitizer
	publisher notifications.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the state machine service.
func NewService(repo Repository, directory users.Directory, periodSvc periodSource, sanitizer Sanitizer, publisher notifications.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		periods:   periodSvc,
		sanitizer: sanitizer,
		publisher: publisher,
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

// CreateOrGetDraft creates the employee's draft for the current period.
// Fails with periods.ErrNoActivePeriod when no open period covers today and
// with ErrDuplicateReport when a report for (employee, period) exists.
func (s *Service) CreateOrGetDraft(ctx context.Context, actor shared.Actor) (Report, error) {
	period, err := s.periods.Current(ctx)
	if err != nil {
		return Report{}, err
	}
	var report Report
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report, err = tx.Insert(ctx, actor.ID, period.ID)
		return err
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

// UpdateContent replaces the employee-authored fields. Permitted only while
// the report is editable and its period is still open.
func (s *Service) UpdateContent(ctx context.Context, reportID int64, content Content, actor shared.Actor) (Report, error) {
	if err := content.Validate(); err != nil {
		return Report{}, err
	}
	content = sanitizeContent(s.sanitizer, content)

	var report Report
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		report, err = tx.GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		target, err := s.targetFor(ctx, report.EmployeeID)
		if err != nil {
			return err
		}
		if !shared.Allow(actor, shared.ActionReportEdit, target) {
			return shared.ErrForbidden
		}
		period, err := tx.GetPeriodShared(ctx, report.PeriodID)
		if err != nil {
			return err
		}
		if !report.Editable() || period.EffectivelyClosed(s.now()) {
			return ErrReportLocked
		}
		if err := tx.UpdateContent(ctx, reportID, content); err != nil {
			return err
		}
		report.Content = content
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

// Submit transitions Draft/RevisionRequested → Submitted. The row lock makes
// the check-then-set atomic: of two racing submits exactly one wins, the
// other observes Submitted and fails with ErrInvalidTransition.
func (s *Service) Submit(ctx context.Context, reportID int64, actor shared.Actor) (Report, error) {
	var (
		report Report
		events []notifications.Event
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		report, err = tx.GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		target, err := s.targetFor(ctx, report.EmployeeID)
		if err != nil {
			return err
		}
		if !shared.Allow(actor, shared.ActionReportSubmit, target) {
			return shared.ErrForbidden
		}
		if !canTransition(report.Status, StatusSubmitted) {
			return ErrInvalidTransition
		}
		if err := report.Content.ValidateForSubmit(); err != nil {
			return err
		}
		period, err := tx.GetPeriodShared(ctx, report.PeriodID)
		if err != nil {
			return err
		}
		now := s.now()
		late := now.After(period.Deadline)
		if err := tx.MarkSubmitted(ctx, reportID, now, late); err != nil {
			return err
		}
		report.Status = StatusSubmitted
		report.SubmittedAt = &now
		report.IsLate = late
		if err := tx.Audit(ctx, shared.AuditLog{
			ActorID:  &actor.ID,
			Action:   shared.AuditReportSubmit,
			Entity:   "report",
			EntityID: fmt.Sprintf("%d", reportID),
			Meta:     map[string]any{"message": "report submitted to supervisor", "is_late": late},
			At:       now,
		}); err != nil {
			return err
		}
		events = append(events, notifications.NewEvent(notifications.TypeReportSubmitted, reportID, actor.ID))
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.publish(ctx, events)
	return report, nil
}

// Review transitions Submitted → Reviewed. Reviewed is terminal.
func (s *Service) Review(ctx context.Context, reportID int64, actor shared.Actor) (Report, error) {
	var (
		report Report
		events []notifications.Event
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		report, err = tx.GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		target, err := s.targetFor(ctx, report.EmployeeID)
		if err != nil {
			return err
		}
		if !shared.Allow(actor, shared.ActionReportReview, target) {
			return shared.ErrForbidden
		}
		if !canTransition(report.Status, StatusReviewed) {
			return ErrInvalidTransition
		}
		now := s.now()
		if err := tx.MarkReviewed(ctx, reportID, now); err != nil {
			return err
		}
		report.Status = StatusReviewed
		report.ReviewedAt = &now
		if err := tx.Audit(ctx, shared.AuditLog{
			ActorID:  &actor.ID,
			Action:   shared.AuditReportReview,
			Entity:   "report",
			EntityID: fmt.Sprintf("%d", reportID),
			Meta:     map[string]any{"message": "report marked as reviewed"},
			At:       now,
		}); err != nil {
			return err
		}
		events = append(events, notifications.NewEvent(notifications.TypeReportReviewed, reportID, actor.ID))
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.publish(ctx, events)
	return report, nil
}

// RequestRevision transitions Submitted → RevisionRequested and attaches a
// system-authored comment atomically with the status change.
func (s *Service) RequestRevision(ctx context.Context, reportID int64, feedback string, actor shared.Actor) (Report, error) {
	if feedback == "" {
		feedback = "Supervisor requested a revision."
	}
	feedback = s.sanitizeBody(feedback)
	if len(feedback) > MaxCommentBody {
		return Report{}, shared.NewValidationError(map[string]string{"comment": "exceeds maximum length"})
	}
	var (
		report Report
		events []notifications.Event
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		report, err = tx.GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		target, err := s.targetFor(ctx, report.EmployeeID)
		if err != nil {
			return err
		}
		if !shared.Allow(actor, shared.ActionReportRevision, target) {
			return shared.ErrForbidden
		}
		if !canTransition(report.Status, StatusRevisionRequested) {
			return ErrInvalidTransition
		}
		if err := tx.SetStatus(ctx, reportID, StatusRevisionRequested); err != nil {
			return err
		}
		report.Status = StatusRevisionRequested
		comment, err := tx.InsertComment(ctx, Comment{
			ReportID: reportID,
			AuthorID: actor.ID,
			Body:     "[Revision requested] " + feedback,
		})
		if err != nil {
			return err
		}
		if err := tx.Audit(ctx, shared.AuditLog{
			ActorID:  &actor.ID,
			Action:   shared.AuditReportRevision,
			Entity:   "report",
			EntityID: fmt.Sprintf("%d", reportID),
			Meta:     map[string]any{"message": "supervisor requested a revision", "comment": feedback},
			At:       s.now(),
		}); err != nil {
			return err
		}
		event := notifications.NewEvent(notifications.TypeRevisionRequested, reportID, actor.ID)
		event.CommentID = &comment.ID
		events = append(events, event)
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.publish(ctx, events)
	return report, nil
}

// ResetToDraft is the admin-only escape hatch back to Draft from any state.
func (s *Service) ResetToDraft(ctx context.Context, reportID int64, actor shared.Actor) (Report, error) {
	if !shared.Allow(actor, shared.ActionReportReset, shared.Target{}) {
		return Report{}, shared.ErrForbidden
	}
	var report Report
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		report, err = tx.GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		if report.Status == StatusDraft {
			return ErrAlreadyDraft
		}
		if err := tx.ResetToDraft(ctx, reportID); err != nil {
			return err
		}
		previous := report.Status
		report.Status = StatusDraft
		report.SubmittedAt = nil
		report.ReviewedAt = nil
		report.IsLate = false
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  &actor.ID,
			Action:   shared.AuditReportReset,
			Entity:   "report",
			EntityID: fmt.Sprintf("%d", reportID),
			Meta:     map[string]any{"message": "admin reset report to draft", "previous_status": string(previous)},
			At:       s.now(),
		})
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

// DeleteDraft removes the employee's own report while it is still a draft.
func (s *Service) DeleteDraft(ctx context.Context, reportID int64, actor shared.Actor) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report, err := tx.GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		if report.EmployeeID != actor.ID {
			return shared.ErrForbidden
		}
		return tx.DeleteDraft(ctx, reportID)
	})
}

// AddComment attaches a comment or a one-level reply to a report.
func (s *Service) AddComment(ctx context.Context, reportID int64, parentID *int64, body string, actor shared.Actor) (Comment, error) {
	body = s.sanitizeBody(body)
	if body == "" {
		return Comment{}, shared.NewValidationError(map[string]string{"body": "required"})
	}
	if len(body) > MaxCommentBody {
		return Comment{}, shared.NewValidationError(map[string]string{"body": "exceeds maximum length"})
	}
	var (
		comment Comment
		events  []notifications.Event
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report, err := tx.GetForUpdate(ctx, reportID)
		if err != nil {
			return err
		}
		target, err := s.targetFor(ctx, report.EmployeeID)
		if err != nil {
			return err
		}
		if !shared.Allow(actor, shared.ActionReportComment, target) {
			return shared.ErrForbidden
		}
		kind := notifications.TypeCommentAdded
		if parentID != nil {
			parent, err := tx.GetComment(ctx, *parentID)
			if err != nil {
				return err
			}
			if parent.ReportID != reportID {
				return shared.NewValidationError(map[string]string{"parent_id": "belongs to another report"})
			}
			if parent.ParentID != nil {
				return shared.NewValidationError(map[string]string{"parent_id": "reply threading beyond one level is not supported"})
			}
			kind = notifications.TypeCommentReply
		}
		comment, err = tx.InsertComment(ctx, Comment{
			ReportID: reportID,
			AuthorID: actor.ID,
			Body:     body,
			ParentID: parentID,
		})
		if err != nil {
			return err
		}
		if err := tx.Audit(ctx, shared.AuditLog{
			ActorID:  &actor.ID,
			Action:   shared.AuditCommentAdd,
			Entity:   "report",
			EntityID: fmt.Sprintf("%d", reportID),
			Meta:     map[string]any{"comment_id": comment.ID},
			At:       s.now(),
		}); err != nil {
			return err
		}
		event := notifications.NewEvent(kind, reportID, actor.ID)
		event.CommentID = &comment.ID
		events = append(events, event)
		return nil
	})
	if err != nil {
		return Comment{}, err
	}
	s.publish(ctx, events)
	return comment, nil
}

// Get returns a report, permission-gated to the owner, the owner's
// supervisor, and admins.
func (s *Service) Get(ctx context.Context, reportID int64, actor shared.Actor) (Report, error) {
	report, err := s.repo.Get(ctx, reportID)
	if err != nil {
		return Report{}, err
	}
	if err := s.canView(ctx, report, actor); err != nil {
		return Report{}, err
	}
	return report, nil
}

// ListMine returns the actor's own reports, newest period first.
func (s *Service) ListMine(ctx context.Context, actor shared.Actor) ([]Report, error) {
	return s.repo.ListByEmployee(ctx, actor.ID)
}

// ListPendingReview returns submitted reports awaiting the supervisor.
func (s *Service) ListPendingReview(ctx context.Context, actor shared.Actor) ([]Report, error) {
	if actor.Role != shared.RoleSupervisor {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListSubmittedForSupervisor(ctx, actor.ID)
}

// Comments returns the comment thread for a report.
func (s *Service) Comments(ctx context.Context, reportID int64, actor shared.Actor) ([]Comment, error) {
	report, err := s.repo.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, report, actor); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, reportID)
}

func (s *Service) canView(ctx context.Context, report Report, actor shared.Actor) error {
	if actor.IsAdmin() || report.EmployeeID == actor.ID {
		return nil
	}
	target, err := s.targetFor(ctx, report.EmployeeID)
	if err != nil {
		return err
	}
	if target.SupervisorID != nil && *target.SupervisorID == actor.ID {
		return nil
	}
	return shared.ErrForbidden
}

func (s *Service) targetFor(ctx context.Context, employeeID int64) (shared.Target, error) {
	employee, err := s.directory.Get(ctx, employeeID)
	if err != nil {
		return shared.Target{}, err
	}
	return shared.Target{OwnerID: employee.ID, SupervisorID: employee.SupervisorID}, nil
}

func (s *Service) sanitizeBody(body string) string {
	if s.sanitizer == nil {
		return body
	}
	return s.sanitizer.Sanitize(body)
}

// publish hands committed events to the dispatch queue. Failures are logged
// and swallowed: the state change is already durable and the scheduled
// broadcasts backstop missed per-event notifications.
func (s *Service) publish(ctx context.Context, events []notifications.Event) {
	if len(events) == 0 || s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		if s.logger != nil {
			s.logger.Error("publish notification events", slog.Int("count", len(events)), slog.Any("error", err))
		}
	}
}

// IsRetryable reports whether an operation error is transient storage
// contention worth retrying. Business-rule failures are terminal.
func IsRetryable(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected, lock_not_available
		switch pgErr.SQLState() {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}
