package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/shared"
)

// Broadcast jobs are idempotent per period: they recompute "who is still
// pending" on every run, so re-running the same day produces a consistent
// (possibly duplicated) informational notification.

// WeeklyReminder nudges employees whose current-period report is not yet
// submitted. Returns the number of reminders sent.
func (s *Service) WeeklyReminder(ctx context.Context) (int, error) {
	period, err := s.periods.Current(ctx)
	if errors.Is(err, periods.ErrNoActivePeriod) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pending, err := s.repo.ListPendingEmployees(ctx, period.ID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range pending {
		employee, err := s.directory.Get(ctx, p.EmployeeID)
		if err != nil {
			return count, err
		}
		if !employee.Prefs.EmailEnabled || !employee.Prefs.OnWeeklyReminder {
			continue
		}
		if _, err := s.repo.Insert(ctx, Notification{
			Recipient: p.EmployeeID,
			Type:      TypeWeeklyReminder,
			Message:   "Don't forget to submit your weekly report",
			ReportID:  p.ReportID,
		}); err != nil {
			return count, err
		}
		s.email(ctx, employee, "Weekly Reminder",
			fmt.Sprintf("You haven't submitted your weekly report for the period ending %s. Please log in to Gridlog to complete your submission.",
				period.EndDate.Format("2006-01-02")))
		count++
	}
	s.auditBroadcast(ctx, shared.AuditWeeklyReminder, period.ID,
		fmt.Sprintf("weekly reminders sent to %d employees", count))
	return count, nil
}

// DeadlineApproaching warns pending employees on deadline day only.
func (s *Service) DeadlineApproaching(ctx context.Context) (int, error) {
	period, err := s.periods.Current(ctx)
	if errors.Is(err, periods.ErrNoActivePeriod) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	now := s.now()
	dy, dm, dd := period.Deadline.Date()
	ny, nm, nd := now.Date()
	if dy != ny || dm != nm || dd != nd {
		return 0, nil
	}
	pending, err := s.repo.ListPendingEmployees(ctx, period.ID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range pending {
		employee, err := s.directory.Get(ctx, p.EmployeeID)
		if err != nil {
			return count, err
		}
		if !employee.Prefs.EmailEnabled || !employee.Prefs.OnDeadlineApproaching {
			continue
		}
		if _, err := s.repo.Insert(ctx, Notification{
			Recipient: p.EmployeeID,
			Type:      TypeDeadlineApproaching,
			Message:   "Deadline approaching: report due tonight",
			ReportID:  p.ReportID,
		}); err != nil {
			return count, err
		}
		s.email(ctx, employee, "Deadline Approaching",
			fmt.Sprintf("The deadline for your weekly report is tonight (%s). Please ensure your report is submitted on time.",
				period.Deadline.Format("2006-01-02")))
		count++
	}
	s.auditBroadcast(ctx, shared.AuditDeadlineReminder, period.ID,
		fmt.Sprintf("deadline notifications sent to %d employees", count))
	return count, nil
}

// OverdueSummary tells each supervisor how many team members are still
// pending. In-app only; summaries carry no report link and no email.
func (s *Service) OverdueSummary(ctx context.Context) (int, error) {
	period, err := s.periods.Current(ctx)
	if errors.Is(err, periods.ErrNoActivePeriod) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	counts, err := s.repo.OverdueCountsBySupervisor(ctx, period.ID)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, c := range counts {
		if c.Pending == 0 {
			continue
		}
		if _, err := s.repo.Insert(ctx, Notification{
			Recipient: c.SupervisorID,
			Type:      TypeOverdueSummary,
			Message:   fmt.Sprintf("%d team members haven't submitted reports", c.Pending),
		}); err != nil {
			return sent, err
		}
		sent++
	}
	s.auditBroadcast(ctx, shared.AuditOverdueSummary, period.ID,
		fmt.Sprintf("overdue summaries sent to %d supervisors", sent))
	return sent, nil
}

func (s *Service) auditBroadcast(ctx context.Context, action string, periodID int64, message string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "reporting_period",
		EntityID: fmt.Sprintf("%d", periodID),
		Meta:     map[string]any{"message": message},
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("broadcast audit", slog.Any("error", err))
	}
}
