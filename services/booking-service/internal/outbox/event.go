package outbox

import (
	"encoding/json"
	"time"

	"github.com/purelife/meetings/services/booking-service/internal/model"
)

// Topic names. One event type per topic, versioned in the name.
const (
	TopicMeetingBooked         = "booking.meeting.booked.v1"
	TopicMeetingCancelled      = "booking.meeting.cancelled.v1"
	TopicCalendarSyncRequested = "booking.calendar.sync.requested.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// MeetingBookedPayload notifies downstream services about a new booking.
// Host email comes from the platform profile so the notification service
// never needs its own host lookup.
type MeetingBookedPayload struct {
	MeetingID     string    `json:"meeting_id"`
	HostID        string    `json:"host_id"`
	HostName      string    `json:"host_name"`
	HostEmail     string    `json:"host_email"`
	AttendeeID    string    `json:"attendee_id"`
	AttendeeName  string    `json:"attendee_name"`
	AttendeeEmail string    `json:"attendee_email"`
	MeetingType   string    `json:"meeting_type"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type MeetingCancelledPayload struct {
	MeetingID     string    `json:"meeting_id"`
	HostID        string    `json:"host_id"`
	HostName      string    `json:"host_name"`
	HostEmail     string    `json:"host_email"`
	AttendeeName  string    `json:"attendee_name"`
	AttendeeEmail string    `json:"attendee_email"`
	MeetingType   string    `json:"meeting_type"`
	StartTime     time.Time `json:"start_time"`
	Reason        string    `json:"reason"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

// CalendarSyncPayload asks the calendar sync worker to mirror a booking
// into the host's external calendar.
type CalendarSyncPayload struct {
	MeetingID     string    `json:"meeting_id"`
	HostID        string    `json:"host_id"`
	AttendeeName  string    `json:"attendee_name"`
	AttendeeEmail string    `json:"attendee_email"`
	MeetingType   string    `json:"meeting_type"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

func MeetingBooked(booking model.Booking, hostName, hostEmail string) (Event, error) {
	payload, err := json.Marshal(MeetingBookedPayload{
		MeetingID:     booking.ID,
		HostID:        booking.HostID,
		HostName:      hostName,
		HostEmail:     hostEmail,
		AttendeeID:    booking.AttendeeID,
		AttendeeName:  booking.AttendeeName,
		AttendeeEmail: booking.AttendeeEmail,
		MeetingType:   booking.MeetingType,
		StartTime:     booking.StartTime,
		EndTime:       booking.EndTime,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "meeting",
		AggregateID:   booking.ID,
		EventType:     TopicMeetingBooked,
		Payload:       payload,
	}, nil
}

func MeetingCancelled(booking model.Booking, hostName, hostEmail, reason string, cancelledAt time.Time) (Event, error) {
	payload, err := json.Marshal(MeetingCancelledPayload{
		MeetingID:     booking.ID,
		HostID:        booking.HostID,
		HostName:      hostName,
		HostEmail:     hostEmail,
		AttendeeName:  booking.AttendeeName,
		AttendeeEmail: booking.AttendeeEmail,
		MeetingType:   booking.MeetingType,
		StartTime:     booking.StartTime,
		Reason:        reason,
		CancelledAt:   cancelledAt,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "meeting",
		AggregateID:   booking.ID,
		EventType:     TopicMeetingCancelled,
		Payload:       payload,
	}, nil
}

func CalendarSyncRequested(booking model.Booking) (Event, error) {
	payload, err := json.Marshal(CalendarSyncPayload{
		MeetingID:     booking.ID,
		HostID:        booking.HostID,
		AttendeeName:  booking.AttendeeName,
		AttendeeEmail: booking.AttendeeEmail,
		MeetingType:   booking.MeetingType,
		StartTime:     booking.StartTime,
		EndTime:       booking.EndTime,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "meeting",
		AggregateID:   booking.ID,
		EventType:     TopicCalendarSyncRequested,
		Payload:       payload,
	}, nil
}
