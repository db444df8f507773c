package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridlog/gridlog/internal/platform/db"
	"github.com/gridlog/gridlog/internal/shared"
)

// Repository defines reporting period data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id int64) (Period, error)
	Current(ctx context.Context, now time.Time) (Period, error)
	List(ctx context.Context, limit, offset int) ([]Period, error)
}

// TxRepository defines operations executed inside a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Period, error)
	// InsertIfAbsent creates the (start,end) window unless it already
	// exists. The bool reports whether a row was created.
	InsertIfAbsent(ctx context.Context, start, end, deadline time.Time) (Period, bool, error)
	// CloseEndingBefore closes every open period whose end date precedes
	// cutoff and returns the affected ids.
	CloseEndingBefore(ctx context.Context, cutoff time.Time) ([]int64, error)
	// ListExpiredForUpdate locks open periods whose scheduled auto-close
	// instant has passed.
	ListExpiredForUpdate(ctx context.Context, now time.Time) ([]Period, error)
	SetClosed(ctx context.Context, id int64, closed bool) error

	Audit(ctx context.Context, log shared.AuditLog) error
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) Repository {
	return &pgRepository{pool: pool, audit: audit}
}

const periodColumns = `id, start_date, end_date, deadline, is_closed, closes_at, created_at, updated_at`

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx, audit: r.audit})
	})
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM reporting_periods WHERE id = $1`, id)
	return scanPeriod(row)
}

func (r *pgRepository) Current(ctx context.Context, now time.Time) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM reporting_periods
		WHERE NOT is_closed
		  AND (closes_at IS NULL OR closes_at > $1)
		  AND start_date <= $1::date AND end_date >= $1::date
		ORDER BY start_date DESC LIMIT 1`, now)
	p, err := scanPeriod(row)
	if errors.Is(err, shared.ErrNotFound) {
		return Period{}, ErrNoActivePeriod
	}
	return p, err
}

func (r *pgRepository) List(ctx context.Context, limit, offset int) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM reporting_periods
		ORDER BY start_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx    pgx.Tx
	audit *shared.AuditLogger
}

func (r *pgTxRepository) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM reporting_periods WHERE id = $1 FOR UPDATE`, id)
	return scanPeriod(row)
}

func (r *pgTxRepository) InsertIfAbsent(ctx context.Context, start, end, deadline time.Time) (Period, bool, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO reporting_periods (start_date, end_date, deadline)
		VALUES ($1, $2, $3)
		ON CONFLICT (start_date, end_date) DO NOTHING
		RETURNING `+periodColumns, start, end, deadline)
	p, err := scanPeriod(row)
	if errors.Is(err, shared.ErrNotFound) {
		// Duplicate trigger firing: the window already exists.
		row = r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM reporting_periods WHERE start_date = $1 AND end_date = $2`, start, end)
		p, err = scanPeriod(row)
		return p, false, err
	}
	if err != nil {
		return Period{}, false, err
	}
	return p, true, nil
}

func (r *pgTxRepository) CloseEndingBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `UPDATE reporting_periods
		SET is_closed = TRUE, updated_at = NOW()
		WHERE end_date < $1::date AND NOT is_closed
		RETURNING id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgTxRepository) ListExpiredForUpdate(ctx context.Context, now time.Time) ([]Period, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+periodColumns+` FROM reporting_periods
		WHERE NOT is_closed AND closes_at IS NOT NULL AND closes_at <= $1
		ORDER BY id FOR UPDATE`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgTxRepository) SetClosed(ctx context.Context, id int64, closed bool) error {
	tag, err := r.tx.Exec(ctx, `UPDATE reporting_periods SET is_closed = $2, updated_at = NOW() WHERE id = $1`, id, closed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) Audit(ctx context.Context, log shared.AuditLog) error {
	return r.audit.RecordTx(ctx, r.tx, log)
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.StartDate, &p.EndDate, &p.Deadline, &p.IsClosed, &p.ClosesAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, shared.ErrNotFound
	}
	if err != nil {
		return Period{}, err
	}
	return p, nil
}
