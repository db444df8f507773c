package periods

import (
	"errors"
	"time"
)

// Period is a Monday→Sunday reporting window. Deadline defaults to the
// Friday of the window at 23:59:59. Historical periods are never deleted.
type Period struct {
	ID        int64      `json:"id"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Deadline  time.Time  `json:"deadline"`
	IsClosed  bool       `json:"is_closed"`
	ClosesAt  *time.Time `json:"closes_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ErrNoActivePeriod is returned when no open period covers the current date.
var ErrNoActivePeriod = errors.New("periods: no active reporting period")

// ErrAlreadyClosed indicates a close on a period that is closed already.
var ErrAlreadyClosed = errors.New("periods: period already closed")

// ErrNotClosed indicates a reopen on a period that is open already.
var ErrNotClosed = errors.New("periods: period is not closed")

// StartWeekday is the fixed weekday every reporting window begins on.
const StartWeekday = time.Monday

// IsCurrent reports whether now falls inside the window of an open period.
func (p Period) IsCurrent(now time.Time) bool {
	if p.EffectivelyClosed(now) {
		return false
	}
	day := truncateToDay(now)
	return !day.Before(truncateToDay(p.StartDate)) && !day.After(truncateToDay(p.EndDate))
}

// EffectivelyClosed reports whether the period is closed either manually or
// because its scheduled auto-close instant has passed.
func (p Period) EffectivelyClosed(now time.Time) bool {
	if p.IsClosed {
		return true
	}
	return p.ClosesAt != nil && !now.Before(*p.ClosesAt)
}

// NextWindowStart computes the start of the next reporting window: today
// when today already is the start weekday, otherwise the nearest future
// occurrence.
func NextWindowStart(now time.Time) time.Time {
	day := truncateToDay(now)
	offset := (int(StartWeekday) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, offset)
}

// DeadlineFor derives the submission deadline for a window starting at
// start: day four of the window at 23:59:59.
func DeadlineFor(start time.Time) time.Time {
	friday := truncateToDay(start).AddDate(0, 0, 4)
	return time.Date(friday.Year(), friday.Month(), friday.Day(), 23, 59, 59, 0, friday.Location())
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RolloverResult summarises an idempotent rollover run for observability.
type RolloverResult struct {
	Created       *Period `json:"created,omitempty"`
	ClosedPeriods []int64 `json:"closed_periods"`
}
