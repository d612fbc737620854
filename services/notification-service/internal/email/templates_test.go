package email

import (
	"strings"
	"testing"
	"time"
)

func sampleMeeting() Meeting {
	return Meeting{
		MeetingID:    "m-1",
		HostName:     "Maria",
		AttendeeName: "Anna",
		MeetingType:  "consultation",
		StartTime:    time.Date(2026, 2, 4, 14, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 2, 4, 15, 0, 0, 0, time.UTC),
	}
}

func TestBookedForAttendee(t *testing.T) {
	subject, body := BookedForAttendee(sampleMeeting())
	if subject != "Booking confirmed: consultation with Maria" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Hi Anna,") {
		t.Fatalf("body must greet the attendee: %q", body)
	}
	if !strings.Contains(body, "Wednesday, 4 February 2026 at 14:00 UTC") {
		t.Fatalf("body must carry the start time: %q", body)
	}
	if !strings.Contains(body, "m-1") {
		t.Fatalf("body must carry the booking reference: %q", body)
	}
}

func TestBookedForHost(t *testing.T) {
	subject, body := BookedForHost(sampleMeeting())
	if subject != "New booking: consultation with Anna" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Hi Maria,") {
		t.Fatalf("body must greet the host: %q", body)
	}
	if !strings.Contains(body, "Anna booked a consultation") {
		t.Fatalf("body must name the attendee: %q", body)
	}
}

func TestCancelledTemplates_Reason(t *testing.T) {
	m := sampleMeeting()
	m.CancelReason = "Host on leave"

	_, body := CancelledForAttendee(m)
	if !strings.Contains(body, "Reason: Host on leave") {
		t.Fatalf("attendee body must carry the reason: %q", body)
	}

	_, body = CancelledForHost(m)
	if !strings.Contains(body, "Reason: Host on leave") {
		t.Fatalf("host body must carry the reason: %q", body)
	}

	m.CancelReason = ""
	_, body = CancelledForAttendee(m)
	if strings.Contains(body, "Reason:") {
		t.Fatalf("empty reason must not render: %q", body)
	}
}

func TestTemplates_UntypedMeeting(t *testing.T) {
	m := sampleMeeting()
	m.MeetingType = ""
	subject, _ := BookedForAttendee(m)
	if subject != "Booking confirmed: meeting with Maria" {
		t.Fatalf("untyped meetings fall back to the generic label, got %q", subject)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("no-reply@purelife.local", "anna@example.com", "Hello", "Body text")
	if !strings.HasPrefix(msg, "From: no-reply@purelife.local\r\n") {
		t.Fatalf("unexpected message prefix: %q", msg)
	}
	if !strings.Contains(msg, "\r\n\r\nBody text\r\n") {
		t.Fatalf("headers and body must be separated by a blank line: %q", msg)
	}
}
