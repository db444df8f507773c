package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/platform/db"
	"github.com/gridlog/gridlog/internal/shared"
)

// Repository defines report data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id int64) (Report, error)
	GetByEmployeeAndPeriod(ctx context.Context, employeeID, periodID int64) (Report, error)
	ListByEmployee(ctx context.Context, employeeID int64) ([]Report, error)
	ListSubmittedForSupervisor(ctx context.Context, supervisorID int64) ([]Report, error)
	ListComments(ctx context.Context, reportID int64) ([]Comment, error)
	StatusCounts(ctx context.Context, periodID int64) (map[Status]int, error)
	CountActiveEmployees(ctx context.Context) (int, error)
}

// TxRepository defines operations executed while holding the report's
// exclusive row lock.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Report, error)
	// GetPeriodShared takes a shared lock on the period row so an
	// in-flight admin close/reopen serialises against this transition.
	GetPeriodShared(ctx context.Context, periodID int64) (periods.Period, error)
	Insert(ctx context.Context, employeeID, periodID int64) (Report, error)
	UpdateContent(ctx context.Context, id int64, content Content) error
	MarkSubmitted(ctx context.Context, id int64, at time.Time, late bool) error
	MarkReviewed(ctx context.Context, id int64, at time.Time) error
	SetStatus(ctx context.Context, id int64, status Status) error
	ResetToDraft(ctx context.Context, id int64) error
	DeleteDraft(ctx context.Context, id int64) error
	InsertComment(ctx context.Context, comment Comment) (Comment, error)
	GetComment(ctx context.Context, id int64) (Comment, error)

	Audit(ctx context.Context, log shared.AuditLog) error
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) Repository {
	return &pgRepository{pool: pool, audit: audit}
}

const reportColumns = `id, employee_id, period_id, status, accomplishments, goals_next_week,
	blockers, support_needed, progress_rating, additional_notes, is_late,
	submitted_at, reviewed_at, created_at, updated_at`

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx, audit: r.audit})
	})
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	return scanReport(row)
}

func (r *pgRepository) GetByEmployeeAndPeriod(ctx context.Context, employeeID, periodID int64) (Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE employee_id = $1 AND period_id = $2`, employeeID, periodID)
	return scanReport(row)
}

func (r *pgRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+` FROM reports r
		WHERE employee_id = $1
		ORDER BY (SELECT start_date FROM reporting_periods p WHERE p.id = r.period_id) DESC`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

func (r *pgRepository) ListSubmittedForSupervisor(ctx context.Context, supervisorID int64) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+prefixedReportColumns("r")+` FROM reports r
		JOIN users u ON u.id = r.employee_id
		WHERE u.supervisor_id = $1 AND r.status = $2
		ORDER BY r.submitted_at ASC`, supervisorID, StatusSubmitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

func (r *pgRepository) ListComments(ctx context.Context, reportID int64) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, report_id, author_id, body, parent_id, created_at
		FROM report_comments WHERE report_id = $1 ORDER BY created_at`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ReportID, &c.AuthorID, &c.Body, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgRepository) StatusCounts(ctx context.Context, periodID int64) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM reports WHERE period_id = $1 GROUP BY status`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *pgRepository) CountActiveEmployees(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = 'employee' AND is_active`).Scan(&count)
	return count, err
}

type pgTxRepository struct {
	tx    pgx.Tx
	audit *shared.AuditLogger
}

func (r *pgTxRepository) GetForUpdate(ctx context.Context, id int64) (Report, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, id)
	return scanReport(row)
}

func (r *pgTxRepository) GetPeriodShared(ctx context.Context, periodID int64) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, start_date, end_date, deadline, is_closed, closes_at, created_at, updated_at
		FROM reporting_periods WHERE id = $1 FOR SHARE`, periodID).
		Scan(&p.ID, &p.StartDate, &p.EndDate, &p.Deadline, &p.IsClosed, &p.ClosesAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.Period{}, shared.ErrNotFound
	}
	return p, err
}

func (r *pgTxRepository) Insert(ctx context.Context, employeeID, periodID int64) (Report, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO reports (employee_id, period_id, status)
		VALUES ($1, $2, $3) RETURNING `+reportColumns, employeeID, periodID, StatusDraft)
	report, err := scanReport(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Report{}, ErrDuplicateReport
		}
		return Report{}, err
	}
	return report, nil
}

func (r *pgTxRepository) UpdateContent(ctx context.Context, id int64, content Content) error {
	_, err := r.tx.Exec(ctx, `UPDATE reports SET
		accomplishments = $2, goals_next_week = $3, blockers = $4,
		support_needed = $5, progress_rating = $6, additional_notes = $7,
		updated_at = NOW()
		WHERE id = $1`,
		id, content.Accomplishments, content.GoalsNextWeek, content.Blockers,
		content.SupportNeeded, content.ProgressRating, content.AdditionalNotes)
	return err
}

func (r *pgTxRepository) MarkSubmitted(ctx context.Context, id int64, at time.Time, late bool) error {
	_, err := r.tx.Exec(ctx, `UPDATE reports SET status = $2, submitted_at = $3, is_late = $4, updated_at = NOW() WHERE id = $1`,
		id, StatusSubmitted, at, late)
	return err
}

func (r *pgTxRepository) MarkReviewed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE reports SET status = $2, reviewed_at = $3, updated_at = NOW() WHERE id = $1`,
		id, StatusReviewed, at)
	return err
}

func (r *pgTxRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE reports SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *pgTxRepository) ResetToDraft(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE reports SET status = $2, submitted_at = NULL, reviewed_at = NULL, is_late = FALSE, updated_at = NOW() WHERE id = $1`,
		id, StatusDraft)
	return err
}

func (r *pgTxRepository) DeleteDraft(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM reports WHERE id = $1 AND status = $2`, id, StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReportLocked
	}
	return nil
}

func (r *pgTxRepository) InsertComment(ctx context.Context, comment Comment) (Comment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO report_comments (report_id, author_id, body, parent_id)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		comment.ReportID, comment.AuthorID, comment.Body, comment.ParentID)
	if err := row.Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return Comment{}, err
	}
	return comment, nil
}

func (r *pgTxRepository) GetComment(ctx context.Context, id int64) (Comment, error) {
	var c Comment
	err := r.tx.QueryRow(ctx, `SELECT id, report_id, author_id, body, parent_id, created_at
		FROM report_comments WHERE id = $1`, id).
		Scan(&c.ID, &c.ReportID, &c.AuthorID, &c.Body, &c.ParentID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, shared.ErrNotFound
	}
	return c, err
}

func (r *pgTxRepository) Audit(ctx context.Context, log shared.AuditLog) error {
	return r.audit.RecordTx(ctx, r.tx, log)
}

func scanReport(row pgx.Row) (Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.EmployeeID, &rep.PeriodID, &rep.Status,
		&rep.Accomplishments, &rep.GoalsNextWeek, &rep.Blockers, &rep.SupportNeeded,
		&rep.ProgressRating, &rep.AdditionalNotes, &rep.IsLate,
		&rep.SubmittedAt, &rep.ReviewedAt, &rep.CreatedAt, &rep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, shared.ErrNotFound
	}
	if err != nil {
		return Report{}, err
	}
	return rep, nil
}

func collectReports(rows pgx.Rows) ([]Report, error) {
	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func prefixedReportColumns(alias string) string {
	return alias + `.id, ` + alias + `.employee_id, ` + alias + `.period_id, ` + alias + `.status, ` +
		alias + `.accomplishments, ` + alias + `.goals_next_week, ` + alias + `.blockers, ` +
		alias + `.support_needed, ` + alias + `.progress_rating, ` + alias + `.additional_notes, ` +
		alias + `.is_late, ` + alias + `.submitted_at, ` + alias + `.reviewed_at, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
