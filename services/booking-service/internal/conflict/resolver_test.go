package conflict

import (
	"errors"
	"testing"
	"time"

	"github.com/purelife/meetings/services/booking-service/internal/model"
	"github.com/purelife/meetings/services/booking-service/internal/slots"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func candidates(duration int, starts ...int) []slots.Candidate {
	out := make([]slots.Candidate, 0, len(starts))
	for _, s := range starts {
		out = append(out, slots.Candidate{StartMinute: s, DurationMinutes: duration})
	}
	return out
}

func TestResolve_ExcludesBookedSlot(t *testing.T) {
	warsaw := mustLoad(t, "Europe/Warsaw")
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, warsaw)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// 10:00-11:00 local is already booked.
	booked := Interval{
		Start: time.Date(2026, 2, 4, 10, 0, 0, 0, warsaw).UTC(),
		End:   time.Date(2026, 2, 4, 11, 0, 0, 0, warsaw).UTC(),
	}

	got := Resolve(candidates(60, 540, 600, 660), date, warsaw, warsaw, []Interval{booked}, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(got))
	}
	if got[0].HostLabel != "09:00" || got[1].HostLabel != "11:00" {
		t.Fatalf("expected 09:00 and 11:00, got %s and %s", got[0].HostLabel, got[1].HostLabel)
	}
}

func TestResolve_BackToBackIsNotAConflict(t *testing.T) {
	warsaw := mustLoad(t, "Europe/Warsaw")
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, warsaw)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Busy exactly 09:00-10:00; the 10:00 slot must survive.
	busy := Interval{
		Start: time.Date(2026, 2, 4, 9, 0, 0, 0, warsaw).UTC(),
		End:   time.Date(2026, 2, 4, 10, 0, 0, 0, warsaw).UTC(),
	}

	got := Resolve(candidates(60, 540, 600), date, warsaw, warsaw, []Interval{busy}, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(got))
	}
	if got[0].HostLabel != "10:00" {
		t.Fatalf("expected the 10:00 slot, got %s", got[0].HostLabel)
	}
}

func TestResolve_PartialOverlapExcludes(t *testing.T) {
	warsaw := mustLoad(t, "Europe/Warsaw")
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, warsaw)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Busy 09:30-10:30 clips both the 09:00 and the 10:00 slot.
	busy := Interval{
		Start: time.Date(2026, 2, 4, 9, 30, 0, 0, warsaw).UTC(),
		End:   time.Date(2026, 2, 4, 10, 30, 0, 0, warsaw).UTC(),
	}

	got := Resolve(candidates(60, 540, 600, 660), date, warsaw, warsaw, []Interval{busy}, now)
	if len(got) != 1 || got[0].HostLabel != "11:00" {
		t.Fatalf("expected only the 11:00 slot, got %+v", got)
	}
}

func TestResolve_DropsPastSlots(t *testing.T) {
	warsaw := mustLoad(t, "Europe/Warsaw")
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, warsaw)
	// It is 10:15 local on the requested day.
	now := time.Date(2026, 2, 4, 10, 15, 0, 0, warsaw)

	got := Resolve(candidates(60, 540, 600, 660), date, warsaw, warsaw, nil, now)
	if len(got) != 1 || got[0].HostLabel != "11:00" {
		t.Fatalf("expected only the 11:00 slot, got %+v", got)
	}
}

func TestResolve_ViewerLabelUsesViewerTimezone(t *testing.T) {
	warsaw := mustLoad(t, "Europe/Warsaw")
	newYork := mustLoad(t, "America/New_York")
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, warsaw)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	got := Resolve(candidates(60, 900), date, warsaw, newYork, nil, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(got))
	}
	// 15:00 CET is 09:00 EST in February.
	if got[0].HostLabel != "15:00" || got[0].ViewerLabel != "09:00" {
		t.Fatalf("expected 15:00/09:00, got %s/%s", got[0].HostLabel, got[0].ViewerLabel)
	}
	if !got[0].StartUTC.Equal(time.Date(2026, 2, 4, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected canonical instant %s", got[0].StartUTC)
	}
}

func TestResolve_IsIdempotent(t *testing.T) {
	warsaw := mustLoad(t, "Europe/Warsaw")
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, warsaw)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	busy := []Interval{{
		Start: time.Date(2026, 2, 4, 10, 0, 0, 0, warsaw).UTC(),
		End:   time.Date(2026, 2, 4, 11, 0, 0, 0, warsaw).UTC(),
	}}

	first := Resolve(candidates(60, 540, 600, 660), date, warsaw, warsaw, busy, now)
	second := Resolve(candidates(60, 540, 600, 660), date, warsaw, warsaw, busy, now)
	if len(first) != len(second) {
		t.Fatalf("repeated resolution diverged: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].StartUTC.Equal(second[i].StartUTC) {
			t.Fatalf("slot %d diverged: %s vs %s", i, first[i].StartUTC, second[i].StartUTC)
		}
	}
}

func TestCheckWindow_Booked(t *testing.T) {
	start := time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	err := CheckWindow(start, end, []Interval{{Start: start, End: end}}, nil)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestCheckWindow_BlockingEvent(t *testing.T) {
	start := time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	events := []model.BlockingEvent{{
		Title:     "Mindfulness Retreat",
		EventType: "retreat",
		StartTime: start.Add(30 * time.Minute),
		EndTime:   end.Add(30 * time.Minute),
	}}

	err := CheckWindow(start, end, nil, events)
	var conflictErr *BlockingConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected BlockingConflictError, got %v", err)
	}
	if conflictErr.Title != "Mindfulness Retreat" {
		t.Fatalf("unexpected title %q", conflictErr.Title)
	}
}

func TestCheckWindow_BackToBackPasses(t *testing.T) {
	start := time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	if err := CheckWindow(start, end, []Interval{{Start: end, End: end.Add(time.Hour)}}, nil); err != nil {
		t.Fatalf("adjacent booking must not conflict: %v", err)
	}
	if err := CheckWindow(start, end, []Interval{{Start: start.Add(-time.Hour), End: start}}, nil); err != nil {
		t.Fatalf("adjacent earlier booking must not conflict: %v", err)
	}
}
