package conflict

import (
	"errors"
	"fmt"
	"time"

	"github.com/purelife/meetings/services/booking-service/internal/model"
	"github.com/purelife/meetings/services/booking-service/internal/slots"
)

// ErrSlotTaken means the requested window collides with an existing booking.
var ErrSlotTaken = errors.New("slot already booked")

// BlockingConflictError means the window collides with a platform event the
// host or attendee is registered for. The title is safe to surface to users.
type BlockingConflictError struct {
	Title     string
	EventType string
}

func (e *BlockingConflictError) Error() string {
	return fmt.Sprintf("conflicts with %s %q", e.EventType, e.Title)
}

// Interval is a half-open busy range [Start, End) in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the half-open ranges [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back ranges do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Slot is one offered meeting slot. StartUTC is the canonical instant used
// for booking and conflict checks; the labels are wall-clock renderings for
// the host's and the viewer's timezones.
type Slot struct {
	StartMinute int       `json:"start_minute"`
	StartUTC    time.Time `json:"start_utc"`
	EndUTC      time.Time `json:"end_utc"`
	HostLabel   string    `json:"host_label"`
	ViewerLabel string    `json:"viewer_label"`
}

// Resolve filters candidates against busy intervals and the current time and
// renders the survivors as concrete slots. date carries the calendar day in
// the host's timezone; minute-of-day candidates are anchored to that day's
// local midnight, so DST transitions keep the host-facing wall clock stable.
func Resolve(candidates []slots.Candidate, date time.Time, hostLoc, viewerLoc *time.Location, busy []Interval, now time.Time) []Slot {
	out := make([]Slot, 0, len(candidates))
	for _, c := range candidates {
		start := time.Date(date.Year(), date.Month(), date.Day(), 0, c.StartMinute, 0, 0, hostLoc)
		end := start.Add(time.Duration(c.DurationMinutes) * time.Minute)

		if !start.After(now) {
			continue
		}
		if overlapsAny(start, end, busy) {
			continue
		}

		out = append(out, Slot{
			StartMinute: c.StartMinute,
			StartUTC:    start.UTC(),
			EndUTC:      end.UTC(),
			HostLabel:   start.In(hostLoc).Format("15:04"),
			ViewerLabel: start.In(viewerLoc).Format("15:04"),
		})
	}
	return out
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// CheckWindow re-validates a window at booking time against the bookings and
// blocking events read under lock. Bookings win over blocking events so the
// caller reports the stricter conflict first.
func CheckWindow(start, end time.Time, booked []Interval, events []model.BlockingEvent) error {
	if overlapsAny(start, end, booked) {
		return ErrSlotTaken
	}
	for _, ev := range events {
		if Overlaps(start, end, ev.StartTime, ev.EndTime) {
			return &BlockingConflictError{Title: ev.Title, EventType: ev.EventType}
		}
	}
	return nil
}
