package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/gridlog/gridlog/internal/shared"
)

// Service owns the reporting period lifecycle: weekly rollover, scheduled
// auto-close, and administrative close/reopen.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Rollover creates the upcoming Monday→Sunday window if it does not already
// exist and closes every open period ending before it. The operation is
// idempotent: duplicate scheduler firings create nothing and close nothing
// the second time.
func (s *Service) Rollover(ctx context.Context) (RolloverResult, error) {
	now := s.now()
	start := NextWindowStart(now)
	end := start.AddDate(0, 0, 6)
	deadline := DeadlineFor(start)

	var result RolloverResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, created, err := tx.InsertIfAbsent(ctx, start, end, deadline)
		if err != nil {
			return err
		}
		if created {
			result.Created = &period
			if err := tx.Audit(ctx, shared.AuditLog{
				Action:   shared.AuditPeriodCreate,
				Entity:   "reporting_period",
				EntityID: fmt.Sprintf("%d", period.ID),
				Meta: map[string]any{
					"message":    "new reporting period auto-created",
					"start_date": start.Format("2006-01-02"),
					"end_date":   end.Format("2006-01-02"),
					"deadline":   deadline.Format(time.RFC3339),
				},
				At: now,
			}); err != nil {
				return err
			}
		}
		closed, err := tx.CloseEndingBefore(ctx, start)
		if err != nil {
			return err
		}
		result.ClosedPeriods = closed
		for _, id := range closed {
			if err := tx.Audit(ctx, shared.AuditLog{
				Action:   shared.AuditPeriodClose,
				Entity:   "reporting_period",
				EntityID: fmt.Sprintf("%d", id),
				Meta:     map[string]any{"message": "previous reporting period closed by rollover"},
				At:       now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RolloverResult{}, err
	}
	return result, nil
}

// AutoCloseExpired closes open periods whose scheduled closes_at instant has
// passed. Safe to call repeatedly; already-closed periods are skipped by the
// query itself.
func (s *Service) AutoCloseExpired(ctx context.Context) ([]int64, error) {
	now := s.now()
	var closed []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		expired, err := tx.ListExpiredForUpdate(ctx, now)
		if err != nil {
			return err
		}
		for _, period := range expired {
			if err := tx.SetClosed(ctx, period.ID, true); err != nil {
				return err
			}
			if err := tx.Audit(ctx, shared.AuditLog{
				Action:   shared.AuditPeriodClose,
				Entity:   "reporting_period",
				EntityID: fmt.Sprintf("%d", period.ID),
				Meta:     map[string]any{"message": "reporting period automatically closed by schedule"},
				At:       now,
			}); err != nil {
				return err
			}
			closed = append(closed, period.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// Close marks a period closed on behalf of an administrator. Runs under a
// row lock so a concurrent submit reading is_closed serialises against it.
func (s *Service) Close(ctx context.Context, id int64, actor shared.Actor) (Period, error) {
	return s.setClosed(ctx, id, actor, true)
}

// Reopen clears the closed flag on a period.
func (s *Service) Reopen(ctx context.Context, id int64, actor shared.Actor) (Period, error) {
	return s.setClosed(ctx, id, actor, false)
}

func (s *Service) setClosed(ctx context.Context, id int64, actor shared.Actor, closed bool) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if closed && period.IsClosed {
			return ErrAlreadyClosed
		}
		if !closed && !period.IsClosed {
			return ErrNotClosed
		}
		if err := tx.SetClosed(ctx, id, closed); err != nil {
			return err
		}
		period.IsClosed = closed
		action := shared.AuditPeriodClose
		message := "reporting period closed by admin"
		if !closed {
			action = shared.AuditPeriodReopen
			message = "reporting period reopened by admin"
		}
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  &actor.ID,
			Action:   action,
			Entity:   "reporting_period",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"message": message},
			At:       s.now(),
		})
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// Current returns the open period whose window contains now.
func (s *Service) Current(ctx context.Context) (Period, error) {
	return s.repo.Current(ctx, s.now())
}

// Get returns a period by id.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.Get(ctx, id)
}

// List returns periods newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Period, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}
