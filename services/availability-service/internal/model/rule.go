package model

import "time"

type RuleKind string

const (
	// RuleKindRecurring repeats weekly on Weekday.
	RuleKindRecurring RuleKind = "recurring"
	// RuleKindDate applies to the single calendar day in Date.
	RuleKindDate RuleKind = "date"
)

// AvailabilityRule is one bookable window a host offers. Times are stored as
// minutes from midnight in the host's timezone, so the wall-clock meaning of a
// recurring rule survives DST transitions.
type AvailabilityRule struct {
	ID          string
	HostID      string
	Kind        RuleKind
	Weekday     int       // recurring rules only, 0=Sunday .. 6=Saturday
	Date        time.Time // date rules only, midnight UTC marker of the calendar day
	StartMinute int
	EndMinute   int
	SlotMinutes int
	MeetingType string // empty means the rule applies to every meeting type
	Active      bool
	CreatedAt   time.Time
}

// DateException removes all availability for one calendar day. The meeting
// type tag is informational; resolution suppresses the whole day regardless.
type DateException struct {
	ID          string
	HostID      string
	Date        time.Time
	Reason      string
	MeetingType string
	CreatedAt   time.Time
}

type HostProfile struct {
	HostID   string
	Name     string
	Timezone string
}
