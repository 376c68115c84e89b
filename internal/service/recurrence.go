package service

import (
	"time"

	"github.com/ardn-app/ardn-api/internal/models"
)

// ExpandOccurrences returns every occurrence date of a recurring request,
// starting at start and stepping until the date would pass until. The result
// always contains start itself when until is not before it. An unrecognised
// recurrence type yields the start date alone.
//
// Monthly stepping anchors on the start date's day-of-month: months too short
// for the anchor clamp to their last day, and later months resume the anchor
// (Jan 31 -> Feb 28 -> Mar 31).
func ExpandOccurrences(start, until time.Time, recurrence models.RecurrenceType) []time.Time {
	if until.Before(start) {
		return nil
	}

	switch recurrence {
	case models.RecurrenceDaily:
		return expandByDays(start, until, 1)
	case models.RecurrenceWeekly:
		return expandByDays(start, until, 7)
	case models.RecurrenceMonthly:
		return expandByMonths(start, until)
	default:
		return []time.Time{start}
	}
}

func expandByDays(start, until time.Time, step int) []time.Time {
	dates := []time.Time{start}
	for next := start.AddDate(0, 0, step); !next.After(until); next = next.AddDate(0, 0, step) {
		dates = append(dates, next)
	}
	return dates
}

func expandByMonths(start, until time.Time) []time.Time {
	anchor := start.Day()
	dates := []time.Time{start}
	for i := 1; ; i++ {
		next := addMonthsClamped(start, i, anchor)
		if next.After(until) {
			break
		}
		dates = append(dates, next)
	}
	return dates
}

// addMonthsClamped advances by whole months from base, clamping the anchor
// day to the target month's length instead of letting it roll over.
func addMonthsClamped(base time.Time, months, anchor int) time.Time {
	year, month := base.Year(), int(base.Month())+months
	year += (month - 1) / 12
	month = (month-1)%12 + 1

	day := anchor
	if last := daysInMonth(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// combineDateTime places clock's time-of-day onto date's calendar day.
// Recurring occurrences reuse the template's start and end clocks on each
// expanded date.
func combineDateTime(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, clock.Location())
}
