package email

import (
	"fmt"
	"time"
)

// Meeting carries the fields the templates render. Times are shown in the
// recipient's terms by the caller; templates format in UTC when no better
// zone is known.
type Meeting struct {
	MeetingID    string
	HostName     string
	AttendeeName string
	MeetingType  string
	StartTime    time.Time
	EndTime      time.Time
	CancelReason string
}

func meetingLabel(m Meeting) string {
	if m.MeetingType != "" {
		return m.MeetingType
	}
	return "meeting"
}

func timeLabel(t time.Time) string {
	return t.UTC().Format("Monday, 2 January 2006 at 15:04 UTC")
}

// BookedForAttendee confirms a new booking to the person who made it.
func BookedForAttendee(m Meeting) (subject, body string) {
	subject = fmt.Sprintf("Booking confirmed: %s with %s", meetingLabel(m), m.HostName)
	body = fmt.Sprintf(
		"Hi %s,\n\nYour %s with %s is confirmed for %s.\n\nBooking reference: %s\n",
		m.AttendeeName, meetingLabel(m), m.HostName, timeLabel(m.StartTime), m.MeetingID,
	)
	return subject, body
}

// BookedForHost tells the host who booked time with them.
func BookedForHost(m Meeting) (subject, body string) {
	subject = fmt.Sprintf("New booking: %s with %s", meetingLabel(m), m.AttendeeName)
	body = fmt.Sprintf(
		"Hi %s,\n\n%s booked a %s with you for %s.\n\nBooking reference: %s\n",
		m.HostName, m.AttendeeName, meetingLabel(m), timeLabel(m.StartTime), m.MeetingID,
	)
	return subject, body
}

// CancelledForAttendee notifies the attendee their meeting was cancelled.
func CancelledForAttendee(m Meeting) (subject, body string) {
	subject = fmt.Sprintf("Cancelled: %s with %s", meetingLabel(m), m.HostName)
	body = fmt.Sprintf(
		"Hi %s,\n\nYour %s with %s on %s has been cancelled.",
		m.AttendeeName, meetingLabel(m), m.HostName, timeLabel(m.StartTime),
	)
	if m.CancelReason != "" {
		body += fmt.Sprintf("\n\nReason: %s", m.CancelReason)
	}
	body += "\n"
	return subject, body
}

// CancelledForHost confirms the cancellation to the host.
func CancelledForHost(m Meeting) (subject, body string) {
	subject = fmt.Sprintf("Cancelled: %s with %s", meetingLabel(m), m.AttendeeName)
	body = fmt.Sprintf(
		"Hi %s,\n\nThe %s with %s on %s has been cancelled.",
		m.HostName, meetingLabel(m), m.AttendeeName, timeLabel(m.StartTime),
	)
	if m.CancelReason != "" {
		body += fmt.Sprintf("\n\nReason: %s", m.CancelReason)
	}
	body += "\n"
	return subject, body
}
