package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/shared"
	"github.com/gridlog/gridlog/internal/users"
)

type memoryNotificationRepo struct {
	notifications map[int64]Notification
	refs          map[int64]ReportRef
	pending       []PendingReport
	overdue       []OverdueCount
	nextID        int64
}

func newMemoryNotificationRepo() *memoryNotificationRepo {
	return &memoryNotificationRepo{
		notifications: make(map[int64]Notification),
		refs:          make(map[int64]ReportRef),
	}
}

func (r *memoryNotificationRepo) Insert(ctx context.Context, n Notification) (Notification, error) {
	r.nextID++
	n.ID = r.nextID
	n.CreatedAt = time.Now()
	r.notifications[n.ID] = n
	return n, nil
}

func (r *memoryNotificationRepo) ListForUser(ctx context.Context, recipientID int64, unreadOnly bool, limit, offset int) ([]Notification, error) {
	var out []Notification
	for _, n := range r.notifications {
		if n.Recipient != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *memoryNotificationRepo) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	count := 0
	for _, n := range r.notifications {
		if n.Recipient == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *memoryNotificationRepo) MarkRead(ctx context.Context, id, recipientID int64) error {
	n, ok := r.notifications[id]
	if !ok || n.Recipient != recipientID {
		return shared.ErrNotFound
	}
	n.IsRead = true
	r.notifications[id] = n
	return nil
}

func (r *memoryNotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) error {
	for id, n := range r.notifications {
		if n.Recipient == recipientID {
			n.IsRead = true
			r.notifications[id] = n
		}
	}
	return nil
}

func (r *memoryNotificationRepo) GetReportRef(ctx context.Context, reportID int64) (ReportRef, error) {
	ref, ok := r.refs[reportID]
	if !ok {
		return ReportRef{}, shared.ErrNotFound
	}
	return ref, nil
}

func (r *memoryNotificationRepo) ListPendingEmployees(ctx context.Context, periodID int64) ([]PendingReport, error) {
	return r.pending, nil
}

func (r *memoryNotificationRepo) OverdueCountsBySupervisor(ctx context.Context, periodID int64) ([]OverdueCount, error) {
	return r.overdue, nil
}

func (r *memoryNotificationRepo) forRecipient(id int64) []Notification {
	var out []Notification
	for _, n := range r.notifications {
		if n.Recipient == id {
			out = append(out, n)
		}
	}
	return out
}

type memoryDirectory struct {
	users map[int64]users.User
}

func (d *memoryDirectory) Get(ctx context.Context, id int64) (users.User, error) {
	u, ok := d.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (d *memoryDirectory) SupervisorOf(ctx context.Context, employeeID int64) (*users.User, error) {
	u, ok := d.users[employeeID]
	if !ok || u.SupervisorID == nil {
		return nil, nil
	}
	sup, ok := d.users[*u.SupervisorID]
	if !ok {
		return nil, nil
	}
	return &sup, nil
}

type sentMail struct {
	To      string
	Subject string
}

type recordingMailer struct {
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject})
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) RecordTx(ctx context.Context, tx pgx.Tx, log shared.AuditLog) error {
	return a.Record(ctx, log)
}

type staticPeriods struct {
	period periods.Period
	err    error
}

func (s staticPeriods) Current(ctx context.Context) (periods.Period, error) {
	if s.err != nil {
		return periods.Period{}, s.err
	}
	return s.period, nil
}

const (
	employeeID   = int64(1)
	supervisorID = int64(2)
)

type fixture struct {
	svc    *Service
	repo   *memoryNotificationRepo
	dir    *memoryDirectory
	mailer *recordingMailer
	audit  *recordingAudit
	period periods.Period
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryNotificationRepo()
	supID := supervisorID
	dir := &memoryDirectory{users: map[int64]users.User{
		employeeID: {
			ID: employeeID, Email: "erin@example.com", FullName: "Erin Employee",
			Role: shared.RoleEmployee, IsActive: true, SupervisorID: &supID,
			Prefs: users.DefaultPrefs(),
		},
		supervisorID: {
			ID: supervisorID, Email: "sam@example.com", FullName: "Sam Supervisor",
			Role: shared.RoleSupervisor, IsActive: true,
			Prefs: users.DefaultPrefs(),
		},
	}}
	mailer := &recordingMailer{}
	audit := &recordingAudit{}

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	period := periods.Period{
		ID:        10,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
		Deadline:  periods.DeadlineFor(start),
	}

	svc := NewService(repo, dir, mailer, audit, staticPeriods{period: period}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time { return time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC) })
	return &fixture{svc: svc, repo: repo, dir: dir, mailer: mailer, audit: audit, period: period}
}

func (f *fixture) withReport(reportID int64) ReportRef {
	supID := supervisorID
	ref := ReportRef{
		ID:           reportID,
		EmployeeID:   employeeID,
		SupervisorID: &supID,
		PeriodID:     f.period.ID,
		PeriodEnd:    f.period.EndDate,
	}
	f.repo.refs[reportID] = ref
	return ref
}

func TestDispatchReportSubmitted(t *testing.T) {
	f := newFixture(t)
	f.withReport(7)

	err := f.svc.Dispatch(context.Background(), NewEvent(TypeReportSubmitted, 7, employeeID))
	require.NoError(t, err)

	got := f.repo.forRecipient(supervisorID)
	require.Len(t, got, 1)
	require.Equal(t, TypeReportSubmitted, got[0].Type)
	require.Contains(t, got[0].Message, "Erin Employee")
	require.NotNil(t, got[0].ReportID)
	require.Equal(t, int64(7), *got[0].ReportID)

	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, "sam@example.com", f.mailer.sent[0].To)
	require.Equal(t, "Report Submitted", f.mailer.sent[0].Subject)
}

func TestDispatchNoSupervisorIsNoop(t *testing.T) {
	f := newFixture(t)
	ref := f.withReport(7)
	ref.SupervisorID = nil
	f.repo.refs[7] = ref

	err := f.svc.Dispatch(context.Background(), NewEvent(TypeReportSubmitted, 7, employeeID))
	require.NoError(t, err)
	require.Empty(t, f.repo.notifications)
	require.Empty(t, f.mailer.sent)
}

func TestDispatchReviewedNotifiesEmployee(t *testing.T) {
	f := newFixture(t)
	f.withReport(7)

	err := f.svc.Dispatch(context.Background(), NewEvent(TypeReportReviewed, 7, supervisorID))
	require.NoError(t, err)

	got := f.repo.forRecipient(employeeID)
	require.Len(t, got, 1)
	require.Equal(t, TypeReportReviewed, got[0].Type)
}

func TestDispatchCommentRouting(t *testing.T) {
	f := newFixture(t)
	f.withReport(7)

	// Employee's comment goes to the supervisor.
	err := f.svc.Dispatch(context.Background(), NewEvent(TypeCommentAdded, 7, employeeID))
	require.NoError(t, err)
	require.Len(t, f.repo.forRecipient(supervisorID), 1)

	// Supervisor's comment goes to the employee.
	err = f.svc.Dispatch(context.Background(), NewEvent(TypeCommentAdded, 7, supervisorID))
	require.NoError(t, err)
	require.Len(t, f.repo.forRecipient(employeeID), 1)
}

func TestDispatchPrefGating(t *testing.T) {
	f := newFixture(t)
	f.withReport(7)

	// Global kill switch wins over the per-type flag.
	sup := f.dir.users[supervisorID]
	sup.Prefs.EmailEnabled = false
	f.dir.users[supervisorID] = sup

	err := f.svc.Dispatch(context.Background(), NewEvent(TypeReportSubmitted, 7, employeeID))
	require.NoError(t, err)
	require.Empty(t, f.repo.notifications)
	require.Empty(t, f.mailer.sent)

	// Per-type opt-out with email still enabled.
	sup.Prefs.EmailEnabled = true
	sup.Prefs.OnReportSubmitted = false
	f.dir.users[supervisorID] = sup

	err = f.svc.Dispatch(context.Background(), NewEvent(TypeReportSubmitted, 7, employeeID))
	require.NoError(t, err)
	require.Empty(t, f.repo.notifications)
}

func TestDispatchUnknownReportFails(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Dispatch(context.Background(), NewEvent(TypeReportSubmitted, 404, employeeID))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEmailFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.withReport(7)
	f.mailer.err = errors.New("smtp: connection refused")

	err := f.svc.Dispatch(context.Background(), NewEvent(TypeReportSubmitted, 7, employeeID))
	require.NoError(t, err)
	// The in-app record is still persisted.
	require.Len(t, f.repo.forRecipient(supervisorID), 1)
}

func TestInboxReadFlow(t *testing.T) {
	f := newFixture(t)
	f.withReport(7)
	actor := shared.Actor{ID: supervisorID, Role: shared.RoleSupervisor}

	require.NoError(t, f.svc.Dispatch(context.Background(), NewEvent(TypeReportSubmitted, 7, employeeID)))
	require.NoError(t, f.svc.Dispatch(context.Background(), NewEvent(TypeCommentAdded, 7, employeeID)))

	count, err := f.svc.UnreadCount(context.Background(), actor)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	list, err := f.svc.ListForUser(context.Background(), actor, true, 0, -1)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, f.svc.MarkRead(context.Background(), actor, list[0].ID))
	count, err = f.svc.UnreadCount(context.Background(), actor)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Reading someone else's notification is not found.
	other := shared.Actor{ID: employeeID, Role: shared.RoleEmployee}
	require.ErrorIs(t, f.svc.MarkRead(context.Background(), other, list[1].ID), shared.ErrNotFound)

	require.NoError(t, f.svc.MarkAllRead(context.Background(), actor))
	count, err = f.svc.UnreadCount(context.Background(), actor)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
