package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridlog/gridlog/internal/shared"
)

type memoryPeriodRepo struct {
	periods map[int64]Period
	audits  []shared.AuditLog
	nextID  int64
}

type memoryPeriodTx struct {
	repo *memoryPeriodRepo
}

func newMemoryPeriodRepo() *memoryPeriodRepo {
	return &memoryPeriodRepo{periods: make(map[int64]Period)}
}

func (r *memoryPeriodRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryPeriodTx{repo: r})
}

func (r *memoryPeriodRepo) Get(ctx context.Context, id int64) (Period, error) {
	p, ok := r.periods[id]
	if !ok {
		return Period{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryPeriodRepo) Current(ctx context.Context, now time.Time) (Period, error) {
	for _, p := range r.periods {
		if p.IsCurrent(now) {
			return p, nil
		}
	}
	return Period{}, ErrNoActivePeriod
}

func (r *memoryPeriodRepo) List(ctx context.Context, limit, offset int) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		out = append(out, p)
	}
	return out, nil
}

func (t *memoryPeriodTx) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryPeriodTx) InsertIfAbsent(ctx context.Context, start, end, deadline time.Time) (Period, bool, error) {
	for _, p := range t.repo.periods {
		if p.StartDate.Equal(start) && p.EndDate.Equal(end) {
			return p, false, nil
		}
	}
	t.repo.nextID++
	p := Period{
		ID:        t.repo.nextID,
		StartDate: start,
		EndDate:   end,
		Deadline:  deadline,
		CreatedAt: start,
		UpdatedAt: start,
	}
	t.repo.periods[p.ID] = p
	return p, true, nil
}

func (t *memoryPeriodTx) CloseEndingBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	for id, p := range t.repo.periods {
		if !p.IsClosed && p.EndDate.Before(cutoff) {
			p.IsClosed = true
			t.repo.periods[id] = p
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *memoryPeriodTx) ListExpiredForUpdate(ctx context.Context, now time.Time) ([]Period, error) {
	var out []Period
	for _, p := range t.repo.periods {
		if !p.IsClosed && p.ClosesAt != nil && !now.Before(*p.ClosesAt) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryPeriodTx) SetClosed(ctx context.Context, id int64, closed bool) error {
	p, ok := t.repo.periods[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsClosed = closed
	t.repo.periods[id] = p
	return nil
}

func (t *memoryPeriodTx) Audit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextWindowStart(t *testing.T) {
	monday := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), NextWindowStart(monday))

	wednesday := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), NextWindowStart(wednesday))

	sunday := time.Date(2024, 6, 9, 23, 59, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), NextWindowStart(sunday))
}

func TestDeadlineFor(t *testing.T) {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	deadline := DeadlineFor(start)
	require.Equal(t, time.Date(2024, 6, 7, 23, 59, 59, 0, time.UTC), deadline)
	require.Equal(t, time.Friday, deadline.Weekday())
}

func TestRolloverCreatesWindowAndClosesPrevious(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock(time.Date(2024, 6, 10, 0, 5, 0, 0, time.UTC))) // Monday

	// Previous week's period, still open.
	prev := Period{
		ID:        99,
		StartDate: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC),
		Deadline:  DeadlineFor(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)),
	}
	repo.periods[prev.ID] = prev

	result, err := svc.Rollover(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Created)
	require.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), result.Created.StartDate)
	require.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), result.Created.EndDate)
	require.Equal(t, []int64{99}, result.ClosedPeriods)
	require.True(t, repo.periods[99].IsClosed)

	// Audit trail: one create, one close, both system-attributed.
	require.Len(t, repo.audits, 2)
	require.Nil(t, repo.audits[0].ActorID)
	require.Equal(t, shared.AuditPeriodCreate, repo.audits[0].Action)
	require.Equal(t, shared.AuditPeriodClose, repo.audits[1].Action)
}

func TestRolloverIsIdempotent(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock(time.Date(2024, 6, 10, 0, 5, 0, 0, time.UTC)))

	first, err := svc.Rollover(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first.Created)

	second, err := svc.Rollover(context.Background())
	require.NoError(t, err)
	require.Nil(t, second.Created)
	require.Empty(t, second.ClosedPeriods)
	require.Len(t, repo.periods, 1)
}

func TestAutoCloseExpired(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo)
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	svc.WithNow(fixedClock(now))

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	repo.periods[1] = Period{ID: 1, ClosesAt: &past}
	repo.periods[2] = Period{ID: 2, ClosesAt: &future}
	repo.periods[3] = Period{ID: 3} // no schedule

	closed, err := svc.AutoCloseExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{1}, closed)
	require.True(t, repo.periods[1].IsClosed)
	require.False(t, repo.periods[2].IsClosed)
	require.False(t, repo.periods[3].IsClosed)

	// Second run finds nothing.
	closed, err = svc.AutoCloseExpired(context.Background())
	require.NoError(t, err)
	require.Empty(t, closed)
}

func TestCloseAndReopen(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo)
	admin := shared.Actor{ID: 7, Role: shared.RoleAdmin}
	repo.periods[1] = Period{ID: 1}

	period, err := svc.Close(context.Background(), 1, admin)
	require.NoError(t, err)
	require.True(t, period.IsClosed)

	_, err = svc.Close(context.Background(), 1, admin)
	require.ErrorIs(t, err, ErrAlreadyClosed)

	period, err = svc.Reopen(context.Background(), 1, admin)
	require.NoError(t, err)
	require.False(t, period.IsClosed)

	_, err = svc.Reopen(context.Background(), 1, admin)
	require.ErrorIs(t, err, ErrNotClosed)

	require.Len(t, repo.audits, 2)
	require.Equal(t, &admin.ID, repo.audits[0].ActorID)
}

func TestEffectivelyClosed(t *testing.T) {
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.True(t, Period{IsClosed: true}.EffectivelyClosed(now))
	require.True(t, Period{ClosesAt: &past}.EffectivelyClosed(now))
	require.False(t, Period{ClosesAt: &future}.EffectivelyClosed(now))
	require.False(t, Period{}.EffectivelyClosed(now))
}
