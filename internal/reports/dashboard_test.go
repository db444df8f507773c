package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gridlog/gridlog/internal/periods"
)

type countingRepo struct {
	*memoryReportRepo
	statusCalls int
}

func (r *countingRepo) StatusCounts(ctx context.Context, periodID int64) (map[Status]int, error) {
	r.statusCalls++
	return r.memoryReportRepo.StatusCounts(ctx, periodID)
}

func dashboardFixture(t *testing.T) (*Dashboard, *countingRepo, periods.Period) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingRepo{memoryReportRepo: newMemoryReportRepo()}
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	period := periods.Period{
		ID:        10,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
		Deadline:  periods.DeadlineFor(start),
	}
	repo.periods[period.ID] = period

	cache := NewStatsCache(client, time.Minute)
	return NewDashboard(repo, staticPeriods{period: period}, cache), repo, period
}

func TestDashboardStats(t *testing.T) {
	dash, repo, period := dashboardFixture(t)
	repo.reports[1] = Report{ID: 1, EmployeeID: 1, PeriodID: period.ID, Status: StatusDraft}
	repo.reports[2] = Report{ID: 2, EmployeeID: 2, PeriodID: period.ID, Status: StatusSubmitted}
	repo.reports[3] = Report{ID: 3, EmployeeID: 3, PeriodID: period.ID, Status: StatusSubmitted}

	stats, err := dash.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, period.ID, stats.PeriodID)
	require.Equal(t, period.Deadline, stats.Deadline)
	require.Equal(t, 1, stats.Counts[StatusDraft])
	require.Equal(t, 2, stats.Counts[StatusSubmitted])
	require.Equal(t, 5, stats.TotalEmployees)
	// 5 active employees, 3 started: the rest have no report row at all.
	require.Equal(t, 2, stats.NotStarted)
}

func TestDashboardStatsCached(t *testing.T) {
	dash, repo, _ := dashboardFixture(t)

	_, err := dash.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.statusCalls)

	_, err = dash.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.statusCalls, "second read should come from cache")
}

func TestDashboardStatsBumpInvalidates(t *testing.T) {
	dash, repo, period := dashboardFixture(t)

	stats, err := dash.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.Counts[StatusSubmitted])

	repo.reports[1] = Report{ID: 1, EmployeeID: 1, PeriodID: period.ID, Status: StatusSubmitted}
	require.NoError(t, dash.cache.Bump(context.Background()))

	stats, err = dash.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.statusCalls)
	require.Equal(t, 1, stats.Counts[StatusSubmitted])
}
