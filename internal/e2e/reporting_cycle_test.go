package e2e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridlog/gridlog/internal/periods"
)

// Simulates a quarter of weekly rollovers and checks the calendar
// invariants every period must satisfy: Monday start, Sunday end, Friday
// deadline, and gapless week-over-week continuity.
func TestWeeklyCycleCalendarInvariants(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) // Monday, New Year
	var prev periods.Period

	for week := 0; week < 13; week++ {
		start := periods.NextWindowStart(now)
		period := periods.Period{
			StartDate: start,
			EndDate:   start.AddDate(0, 0, 6),
			Deadline:  periods.DeadlineFor(start),
		}

		require.Equal(t, time.Monday, period.StartDate.Weekday())
		require.Equal(t, time.Sunday, period.EndDate.Weekday())
		require.Equal(t, time.Friday, period.Deadline.Weekday())
		require.Equal(t, 23, period.Deadline.Hour())
		require.True(t, period.Deadline.After(period.StartDate))
		require.True(t, period.Deadline.Before(period.EndDate.AddDate(0, 0, 1)))

		if week > 0 {
			require.Equal(t, prev.EndDate.AddDate(0, 0, 1), period.StartDate,
				"weeks must be contiguous with no gap or overlap")
		}

		// On-time submission window runs through the deadline; the period
		// itself stays open through Sunday.
		require.True(t, period.IsCurrent(period.Deadline.Add(-time.Hour)))
		require.True(t, period.IsCurrent(period.Deadline.Add(time.Hour)))
		require.False(t, period.EffectivelyClosed(period.EndDate))

		prev = period
		now = period.EndDate.AddDate(0, 0, 1).Add(2 * time.Hour)
	}
}

// Walks one period through its lifecycle: open while current, locked by a
// manual close, reopened for a correction, then closed for good by the
// scheduled close timestamp.
func TestPeriodLockingLifecycle(t *testing.T) {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	period := periods.Period{
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
		Deadline:  periods.DeadlineFor(start),
	}
	midWeek := start.AddDate(0, 0, 2)

	require.False(t, period.EffectivelyClosed(midWeek))

	period.IsClosed = true
	require.True(t, period.EffectivelyClosed(midWeek))

	period.IsClosed = false
	require.False(t, period.EffectivelyClosed(midWeek))

	closesAt := period.EndDate.AddDate(0, 0, 1)
	period.ClosesAt = &closesAt
	require.False(t, period.EffectivelyClosed(midWeek))
	require.True(t, period.EffectivelyClosed(closesAt.Add(time.Minute)))
}
