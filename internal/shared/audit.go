package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit action kinds recorded in audit_logs.
const (
	AuditReportSubmit     = "report_submit"
	AuditReportReview     = "report_review"
	AuditReportRevision   = "report_revision_requested"
	AuditReportReset      = "report_reset_to_draft"
	AuditCommentAdd       = "comment_add"
	AuditPeriodCreate     = "report_period_create"
	AuditPeriodClose      = "report_period_close"
	AuditPeriodReopen     = "report_period_reopen"
	AuditWeeklyReminder   = "weekly_reminder"
	AuditDeadlineReminder = "deadline_approaching"
	AuditOverdueSummary   = "overdue_summary"
	AuditUserPrefsUpdate  = "user_prefs_update"
)

// AuditLog represents a record stored in audit_logs. A nil ActorID means the
// action was system-triggered (scheduler, dispatcher).
type AuditLog struct {
	ActorID  *int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditSink is the append-only write contract consumed by the services.
type AuditSink interface {
	Record(ctx context.Context, log AuditLog) error
	RecordTx(ctx context.Context, tx pgx.Tx, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

const auditInsertSQL = `INSERT INTO audit_logs (actor_id, action, target_model, target_id, metadata, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`

// Record persists the log entry outside any caller transaction.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	meta, err := marshalAuditMeta(log)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, auditInsertSQL, log.ActorID, log.Action, log.Entity, log.EntityID, meta, auditAt(log))
	return err
}

// RecordTx persists the log entry inside the caller's transaction so the
// audit trail commits or rolls back together with the state change.
func (l *AuditLogger) RecordTx(ctx context.Context, tx pgx.Tx, log AuditLog) error {
	if tx == nil {
		return errors.New("audit logger requires a transaction")
	}
	meta, err := marshalAuditMeta(log)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, auditInsertSQL, log.ActorID, log.Action, log.Entity, log.EntityID, meta, auditAt(log))
	return err
}

func marshalAuditMeta(log AuditLog) ([]byte, error) {
	if log.Action == "" {
		return nil, errors.New("audit log requires an action")
	}
	return json.Marshal(log.Meta)
}

func auditAt(log AuditLog) time.Time {
	if log.At.IsZero() {
		return time.Now()
	}
	return log.At
}
