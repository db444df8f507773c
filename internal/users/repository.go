package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridlog/gridlog/internal/shared"
)

const userColumns = `id, email, full_name, role, is_active, supervisor_id,
	email_notifications_enabled, notify_on_report_submitted, notify_on_comment_added,
	notify_on_report_reviewed, notify_on_weekly_reminder, notify_on_deadline_approaching,
	created_at`

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUser returns a single user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// ListTeam returns the active employees assigned to a supervisor.
func (r *Repository) ListTeam(ctx context.Context, supervisorID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE supervisor_id = $1 AND is_active ORDER BY full_name`, supervisorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListActiveByRole returns active users holding the given role.
func (r *Repository) ListActiveByRole(ctx context.Context, role shared.Role) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 AND is_active ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// UpdatePrefs replaces the user's notification preference flags.
func (r *Repository) UpdatePrefs(ctx context.Context, id int64, prefs NotificationPrefs) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET
		email_notifications_enabled = $2,
		notify_on_report_submitted = $3,
		notify_on_comment_added = $4,
		notify_on_report_reviewed = $5,
		notify_on_weekly_reminder = $6,
		notify_on_deadline_approaching = $7
		WHERE id = $1`,
		id, prefs.EmailEnabled, prefs.OnReportSubmitted, prefs.OnCommentAdded,
		prefs.OnReportReviewed, prefs.OnWeeklyReminder, prefs.OnDeadlineApproaching)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsActive, &u.SupervisorID,
		&u.Prefs.EmailEnabled, &u.Prefs.OnReportSubmitted, &u.Prefs.OnCommentAdded,
		&u.Prefs.OnReportReviewed, &u.Prefs.OnWeeklyReminder, &u.Prefs.OnDeadlineApproaching,
		&u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
