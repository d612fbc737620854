package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/purelife/meetings/services/availability-service/internal/model"
)

// ValidationError rejects a malformed rule or exception before it can reach
// slot generation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

const minutesPerDay = 24 * 60

// ValidateRule enforces the authoring invariants: a real time range, minute
// bounds, a positive slot duration no longer than the range, a known kind,
// and a loadable timezone on the owning profile (checked by the caller).
func ValidateRule(r model.AvailabilityRule) error {
	switch r.Kind {
	case model.RuleKindRecurring:
		if r.Weekday < 0 || r.Weekday > 6 {
			return &ValidationError{Field: "weekday", Msg: "must be between 0 and 6"}
		}
	case model.RuleKindDate:
		if r.Date.IsZero() {
			return &ValidationError{Field: "date", Msg: "required for date rules"}
		}
	default:
		return &ValidationError{Field: "kind", Msg: "must be recurring or date"}
	}
	if r.StartMinute < 0 || r.StartMinute >= minutesPerDay {
		return &ValidationError{Field: "start_minute", Msg: "out of range"}
	}
	if r.EndMinute <= 0 || r.EndMinute > minutesPerDay {
		return &ValidationError{Field: "end_minute", Msg: "out of range"}
	}
	if r.StartMinute >= r.EndMinute {
		return &ValidationError{Field: "start_minute", Msg: "must be before end_minute"}
	}
	if r.SlotMinutes <= 0 {
		return &ValidationError{Field: "slot_minutes", Msg: "must be positive"}
	}
	if r.SlotMinutes > r.EndMinute-r.StartMinute {
		return &ValidationError{Field: "slot_minutes", Msg: "longer than the window"}
	}
	return nil
}

// Window is one resolved bookable range for a day, in host-local minutes.
type Window struct {
	StartMinute int
	EndMinute   int
	SlotMinutes int
}

// Day is the availability of one host on one calendar date.
type Day struct {
	Date     time.Time
	Timezone string
	Blackout bool
	Windows  []Window
}

// ResolveDay applies the precedence rules for a single date: a date exception
// suppresses everything, then active rules matching the date (by weekday for
// recurring rules, by calendar day for date rules) and the meeting type
// contribute windows. Exceptions are consulted before rules on every path, so
// a blackout day never produces windows no matter which rule family matched.
func ResolveDay(rules []model.AvailabilityRule, exceptions []model.DateException, date time.Time, meetingType string) Day {
	day := Day{Date: date}

	for _, ex := range exceptions {
		if sameDate(ex.Date, date) {
			day.Blackout = true
			return day
		}
	}

	for _, r := range rules {
		if !r.Active {
			continue
		}
		if !ruleMatchesDate(r, date) {
			continue
		}
		if meetingType != "" && r.MeetingType != "" && r.MeetingType != meetingType {
			continue
		}
		day.Windows = append(day.Windows, Window{
			StartMinute: r.StartMinute,
			EndMinute:   r.EndMinute,
			SlotMinutes: r.SlotMinutes,
		})
	}

	sort.Slice(day.Windows, func(i, j int) bool {
		if day.Windows[i].StartMinute != day.Windows[j].StartMinute {
			return day.Windows[i].StartMinute < day.Windows[j].StartMinute
		}
		return day.Windows[i].EndMinute < day.Windows[j].EndMinute
	})
	return day
}

func ruleMatchesDate(r model.AvailabilityRule, date time.Time) bool {
	switch r.Kind {
	case model.RuleKindRecurring:
		return int(date.Weekday()) == r.Weekday
	case model.RuleKindDate:
		return sameDate(r.Date, date)
	default:
		return false
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
