package model

import "time"

// Booking is a confirmed meeting reservation. Start and end are absolute UTC
// instants derived from the host-local wall clock at booking time.
type Booking struct {
	ID            string
	HostID        string
	AttendeeID    string
	AttendeeName  string
	AttendeeEmail string
	MeetingType   string
	StartTime     time.Time
	EndTime       time.Time
	Status        string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

// BlockingEvent is a platform-wide event (webinar, training) that pre-empts
// meeting slots for anyone registered to it. Administered outside this
// service; read-only here.
type BlockingEvent struct {
	ID        string
	Title     string
	EventType string
	StartTime time.Time
	EndTime   time.Time
}
