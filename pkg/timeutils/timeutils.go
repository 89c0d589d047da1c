package timeutils

import (
	"fmt"
	"time"

	domainPost "github.com/postpilot/postpilot/domains/post"
)

// Clock supplies current time so the scheduler can be driven by a fake
// clock in tests instead of sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func System() Clock { return systemClock{} }

// NextOccurrence computes the successor occurrence of a recurring post.
//
// The calculation happens in the post's own IANA zone so the local
// wall-clock time is preserved across DST changes: a daily 08:00 Berlin
// post stays at 08:00 Berlin even when UTC offset shifts. Monthly posts on
// day 29-31 clamp to the last valid day of the target month; once clamped,
// later occurrences follow the clamped day. The result is returned in UTC.
func NextOccurrence(current time.Time, recurrence domainPost.RecurrenceType, tzName string) (time.Time, error) {
	loc := time.UTC
	if tzName != "" {
		l, err := time.LoadLocation(tzName)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", tzName, err)
		}
		loc = l
	}

	local := current.In(loc)

	switch recurrence {
	case domainPost.RecurrenceDaily:
		return addWallClockDays(local, 1).UTC(), nil
	case domainPost.RecurrenceWeekly:
		return addWallClockDays(local, 7).UTC(), nil
	case domainPost.RecurrenceMonthly:
		return addWallClockMonth(local).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("no next occurrence for recurrence %q", recurrence)
	}
}

// addWallClockDays shifts the date while keeping the clock reading, which
// is not the same as adding 24h multiples when a DST transition sits in
// between.
func addWallClockDays(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d+days, hh, mm, ss, t.Nanosecond(), t.Location())
}

func addWallClockMonth(t time.Time) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	if last := daysInMonth(y, m+1, t.Location()); d > last {
		d = last
	}
	return time.Date(y, m+1, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
