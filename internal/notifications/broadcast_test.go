package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/shared"
)

func TestWeeklyReminder(t *testing.T) {
	f := newFixture(t)
	reportID := int64(7)
	f.repo.pending = []PendingReport{
		{EmployeeID: employeeID, ReportID: &reportID},
	}

	sent, err := f.svc.WeeklyReminder(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	got := f.repo.forRecipient(employeeID)
	require.Len(t, got, 1)
	require.Equal(t, TypeWeeklyReminder, got[0].Type)
	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, "Weekly Reminder", f.mailer.sent[0].Subject)

	// The broadcast is audited as a system action.
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, shared.AuditWeeklyReminder, f.audit.logs[0].Action)
	require.Nil(t, f.audit.logs[0].ActorID)
}

func TestWeeklyReminderRespectsPrefs(t *testing.T) {
	f := newFixture(t)
	f.repo.pending = []PendingReport{{EmployeeID: employeeID}}

	emp := f.dir.users[employeeID]
	emp.Prefs.OnWeeklyReminder = false
	f.dir.users[employeeID] = emp

	sent, err := f.svc.WeeklyReminder(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, sent)
	require.Empty(t, f.repo.notifications)
}

func TestWeeklyReminderNoActivePeriod(t *testing.T) {
	f := newFixture(t)
	f.svc.periods = staticPeriods{err: periods.ErrNoActivePeriod}
	f.repo.pending = []PendingReport{{EmployeeID: employeeID}}

	sent, err := f.svc.WeeklyReminder(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, sent)
	require.Empty(t, f.audit.logs)
}

func TestDeadlineApproachingOnDeadlineDayOnly(t *testing.T) {
	f := newFixture(t)
	f.repo.pending = []PendingReport{{EmployeeID: employeeID}}

	// Wednesday: not deadline day, nothing goes out.
	sent, err := f.svc.DeadlineApproaching(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, sent)
	require.Empty(t, f.repo.notifications)

	// Friday morning of deadline day.
	f.svc.WithNow(func() time.Time { return time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC) })
	sent, err = f.svc.DeadlineApproaching(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	got := f.repo.forRecipient(employeeID)
	require.Len(t, got, 1)
	require.Equal(t, TypeDeadlineApproaching, got[0].Type)
}

func TestOverdueSummary(t *testing.T) {
	f := newFixture(t)
	f.repo.overdue = []OverdueCount{
		{SupervisorID: supervisorID, Pending: 3},
		{SupervisorID: 9, Pending: 0},
	}

	sent, err := f.svc.OverdueSummary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	got := f.repo.forRecipient(supervisorID)
	require.Len(t, got, 1)
	require.Equal(t, TypeOverdueSummary, got[0].Type)
	require.Contains(t, got[0].Message, "3 team members")
	require.Nil(t, got[0].ReportID)

	// Summaries are in-app only.
	require.Empty(t, f.mailer.sent)
	// Supervisors with a fully submitted team get nothing.
	require.Empty(t, f.repo.forRecipient(9))
}
