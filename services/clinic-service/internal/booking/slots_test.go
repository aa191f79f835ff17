package booking

import (
	"testing"
	"time"
)

func TestAvailableSlots_Basic(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, loc)
	windowStart := time.Date(2026, 1, 28, 9, 0, 0, 0, loc)
	windowEnd := time.Date(2026, 1, 28, 10, 0, 0, 0, loc)

	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	slots := AvailableSlots(windowStart, windowEnd, 15*time.Minute, 15*time.Minute, busy, day)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Format(time.RFC3339))
	}
	if !slots[1].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected second slot 09:45, got %s", slots[1].Format(time.RFC3339))
	}
}

func TestAvailableSlots_SkipsPast(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 31*time.Minute)
	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour), 15*time.Minute, 15*time.Minute, nil, now)
	if len(slots) != 1 || !slots[0].Equal(day.Add(9*time.Hour+45*time.Minute)) {
		t.Fatalf("expected only 09:45, got %v", slots)
	}
}

func TestAvailableSlots_DurationLongerThanWindow(t *testing.T) {
	day := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	if slots := AvailableSlots(day, day.Add(30*time.Minute), time.Hour, 15*time.Minute, nil, day); slots != nil {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestAvailableSlotsAny_OneFreeVetIsEnough(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	start, end := day.Add(9*time.Hour), day.Add(10*time.Hour)
	vetA := []Interval{{Start: start, End: end}}
	vetB := []Interval{{Start: start, End: start.Add(30 * time.Minute)}}

	slots := AvailableSlotsAny(start, end, 30*time.Minute, 30*time.Minute, [][]Interval{vetA, vetB}, day)
	if len(slots) != 1 || !slots[0].Equal(start.Add(30*time.Minute)) {
		t.Fatalf("expected 09:30 only, got %v", slots)
	}

	slots = AvailableSlotsAny(start, end, 30*time.Minute, 30*time.Minute, [][]Interval{vetA}, day)
	if len(slots) != 0 {
		t.Fatalf("expected fully booked, got %v", slots)
	}
}

func TestOverlapIsHalfOpen(t *testing.T) {
	base := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	busy := []Interval{{Start: base, End: base.Add(30 * time.Minute)}}
	if overlapsAny(base.Add(30*time.Minute), base.Add(time.Hour), busy) {
		t.Fatalf("back-to-back bookings must not overlap")
	}
	if !overlapsAny(base.Add(29*time.Minute), base.Add(time.Hour), busy) {
		t.Fatalf("expected overlap")
	}
}
