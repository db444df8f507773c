package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridlog/gridlog/internal/shared"
)

// ReportRef is the slice of a report the dispatcher needs to route an event.
type ReportRef struct {
	ID           int64
	EmployeeID   int64
	SupervisorID *int64
	PeriodID     int64
	PeriodEnd    time.Time
}

// PendingReport identifies an employee who has not submitted for a period.
// ReportID is nil when the employee never started a draft.
type PendingReport struct {
	EmployeeID int64
	ReportID   *int64
}

// OverdueCount aggregates a supervisor's team members with pending reports.
type OverdueCount struct {
	SupervisorID int64
	Pending      int
}

// Repository persists notifications and resolves dispatch routing data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores an in-app notification record.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO notifications (recipient_id, type, message, report_id, comment_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		n.Recipient, n.Type, n.Message, n.ReportID, n.CommentID)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// ListForUser returns the recipient's notifications, newest first.
func (r *Repository) ListForUser(ctx context.Context, recipientID int64, unreadOnly bool, limit, offset int) ([]Notification, error) {
	query := `SELECT id, recipient_id, type, message, is_read, report_id, comment_id, created_at
		FROM notifications WHERE recipient_id = $1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Type, &n.Message, &n.IsRead, &n.ReportID, &n.CommentID, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns the recipient's unread notification count.
func (r *Repository) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`, recipientID).Scan(&count)
	return count, err
}

// MarkRead flags one notification read; scoped to the recipient so users
// cannot touch each other's inbox.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkAllRead flags the recipient's whole inbox read.
func (r *Repository) MarkAllRead(ctx context.Context, recipientID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`, recipientID)
	return err
}

// GetReportRef resolves the routing data for a report event.
func (r *Repository) GetReportRef(ctx context.Context, reportID int64) (ReportRef, error) {
	var ref ReportRef
	err := r.pool.QueryRow(ctx, `SELECT rp.id, rp.employee_id, u.supervisor_id, rp.period_id, p.end_date
		FROM reports rp
		JOIN users u ON u.id = rp.employee_id
		JOIN reporting_periods p ON p.id = rp.period_id
		WHERE rp.id = $1`, reportID).
		Scan(&ref.ID, &ref.EmployeeID, &ref.SupervisorID, &ref.PeriodID, &ref.PeriodEnd)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReportRef{}, shared.ErrNotFound
	}
	return ref, err
}

// ListPendingEmployees returns active employees whose report for the period
// is missing or still editable. Employees with no row at all count too.
func (r *Repository) ListPendingEmployees(ctx context.Context, periodID int64) ([]PendingReport, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, rp.id
		FROM users u
		LEFT JOIN reports rp ON rp.employee_id = u.id AND rp.period_id = $1
		WHERE u.role = 'employee' AND u.is_active
		  AND (rp.id IS NULL OR rp.status IN ('draft', 'revision_requested'))
		ORDER BY u.id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PendingReport
	for rows.Next() {
		var p PendingReport
		if err := rows.Scan(&p.EmployeeID, &p.ReportID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OverdueCountsBySupervisor groups the period's pending employees by their
// assigned supervisor. Unassigned employees are excluded.
func (r *Repository) OverdueCountsBySupervisor(ctx context.Context, periodID int64) ([]OverdueCount, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.supervisor_id, COUNT(*)
		FROM users u
		LEFT JOIN reports rp ON rp.employee_id = u.id AND rp.period_id = $1
		WHERE u.role = 'employee' AND u.is_active AND u.supervisor_id IS NOT NULL
		  AND (rp.id IS NULL OR rp.status IN ('draft', 'revision_requested'))
		GROUP BY u.supervisor_id
		ORDER BY u.supervisor_id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OverdueCount
	for rows.Next() {
		var c OverdueCount
		if err := rows.Scan(&c.SupervisorID, &c.Pending); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
