package timeutils

import (
	"testing"
	"time"

	domainPost "github.com/postpilot/postpilot/domains/post"
)

func mustOccurrence(t *testing.T, current time.Time, r domainPost.RecurrenceType, tz string) time.Time {
	t.Helper()
	next, err := NextOccurrence(current, r, tz)
	if err != nil {
		t.Fatalf("NextOccurrence() error: %v", err)
	}
	return next
}

func TestNextOccurrenceDaily(t *testing.T) {
	current := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	next := mustOccurrence(t, current, domainPost.RecurrenceDaily, "UTC")

	want := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextOccurrenceDailyAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}

	// 2026-03-28 08:00 Berlin is the day before the spring-forward
	// transition. The next occurrence must still read 08:00 local even
	// though only 23 real hours pass.
	current := time.Date(2026, 3, 28, 8, 0, 0, 0, berlin)
	next := mustOccurrence(t, current.UTC(), domainPost.RecurrenceDaily, "Europe/Berlin")

	local := next.In(berlin)
	if local.Hour() != 8 || local.Minute() != 0 {
		t.Fatalf("wall clock not preserved, got %v", local)
	}
	if local.Day() != 29 {
		t.Fatalf("expected March 29, got %v", local)
	}
	if elapsed := next.Sub(current.UTC()); elapsed != 23*time.Hour {
		t.Fatalf("expected 23 real hours across spring forward, got %v", elapsed)
	}
}

func TestNextOccurrenceWeekly(t *testing.T) {
	current := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	next := mustOccurrence(t, current, domainPost.RecurrenceWeekly, "UTC")

	want := time.Date(2026, 1, 12, 18, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextOccurrenceMonthlyClampsToShortMonth(t *testing.T) {
	// Jan 31 -> Feb 28 (2026 is not a leap year).
	current := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	next := mustOccurrence(t, current, domainPost.RecurrenceMonthly, "UTC")

	want := time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}

	// Once clamped, the following occurrence stays on the clamped day.
	after := mustOccurrence(t, next, domainPost.RecurrenceMonthly, "UTC")
	wantAfter := time.Date(2026, 3, 28, 9, 0, 0, 0, time.UTC)
	if !after.Equal(wantAfter) {
		t.Fatalf("got %v, want %v", after, wantAfter)
	}
}

func TestNextOccurrenceMonthlyLeapYear(t *testing.T) {
	current := time.Date(2028, 1, 31, 9, 0, 0, 0, time.UTC)
	next := mustOccurrence(t, current, domainPost.RecurrenceMonthly, "UTC")

	want := time.Date(2028, 2, 29, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextOccurrenceRejectsNone(t *testing.T) {
	if _, err := NextOccurrence(time.Now(), domainPost.RecurrenceNone, "UTC"); err == nil {
		t.Fatal("expected error for non-recurring post")
	}
}

func TestNextOccurrenceRejectsBadZone(t *testing.T) {
	if _, err := NextOccurrence(time.Now(), domainPost.RecurrenceDaily, "Mars/Olympus"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
