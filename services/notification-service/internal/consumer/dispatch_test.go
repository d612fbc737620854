package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/purelife/meetings/services/notification-service/internal/outbox"
	"github.com/purelife/meetings/services/notification-service/internal/storage"
)

type fakeRecorder struct {
	notifications []storage.Notification
	outcomes      []outbox.Event
}

func (r *fakeRecorder) Record(_ context.Context, n storage.Notification) error {
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *fakeRecorder) Outcome(_ context.Context, evt outbox.Event) error {
	r.outcomes = append(r.outcomes, evt)
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (s *fakeSender) Send(to string, _ string, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

func testDispatcher(recorder Recorder, sender *fakeSender) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(recorder, sender, logger)
}

func bookedMessage(t *testing.T) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(bookedPayload{
		MeetingID:     "m-1",
		HostID:        "host-1",
		HostName:      "Maria",
		HostEmail:     "maria@example.com",
		AttendeeName:  "Anna",
		AttendeeEmail: "anna@example.com",
		MeetingType:   "consultation",
		StartTime:     time.Date(2026, 2, 4, 14, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2026, 2, 4, 15, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return kafka.Message{Value: raw}
}

func TestHandleBooked_NotifiesBothParticipants(t *testing.T) {
	recorder := &fakeRecorder{}
	sender := &fakeSender{}
	d := testDispatcher(recorder, sender)

	if err := d.HandleBooked(context.Background(), bookedMessage(t)); err != nil {
		t.Fatalf("handle booked: %v", err)
	}
	if len(sender.sent) != 2 || sender.sent[0] != "anna@example.com" || sender.sent[1] != "maria@example.com" {
		t.Fatalf("expected attendee then host, got %v", sender.sent)
	}
	if len(recorder.notifications) != 2 {
		t.Fatalf("expected 2 recorded notifications, got %d", len(recorder.notifications))
	}
	for _, n := range recorder.notifications {
		if n.Status != "sent" || n.Channel != "email" {
			t.Fatalf("unexpected notification %+v", n)
		}
	}
	for _, evt := range recorder.outcomes {
		if evt.EventType != outbox.TopicNotificationSent {
			t.Fatalf("unexpected outcome event %q", evt.EventType)
		}
	}
}

func TestHandleBooked_SendFailureIsRecordedNotRetried(t *testing.T) {
	recorder := &fakeRecorder{}
	sender := &fakeSender{err: errors.New("smtp down")}
	d := testDispatcher(recorder, sender)

	if err := d.HandleBooked(context.Background(), bookedMessage(t)); err != nil {
		t.Fatalf("send failures must not fail the handler: %v", err)
	}
	if len(recorder.notifications) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", len(recorder.notifications))
	}
	for _, n := range recorder.notifications {
		if n.Status != "failed" {
			t.Fatalf("expected failed status, got %q", n.Status)
		}
	}
	for _, evt := range recorder.outcomes {
		if evt.EventType != outbox.TopicNotificationFailed {
			t.Fatalf("unexpected outcome event %q", evt.EventType)
		}
	}
}

func TestHandleCancelled_CarriesReason(t *testing.T) {
	recorder := &fakeRecorder{}
	sender := &fakeSender{}
	d := testDispatcher(recorder, sender)

	raw, err := json.Marshal(cancelledPayload{
		MeetingID:     "m-1",
		HostID:        "host-1",
		HostName:      "Maria",
		HostEmail:     "maria@example.com",
		AttendeeName:  "Anna",
		AttendeeEmail: "anna@example.com",
		StartTime:     time.Date(2026, 2, 4, 14, 0, 0, 0, time.UTC),
		Reason:        "Host on leave",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	if err := d.HandleCancelled(context.Background(), kafka.Message{Value: raw}); err != nil {
		t.Fatalf("handle cancelled: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected both participants notified, got %v", sender.sent)
	}
}

func TestHandleBooked_MalformedPayloadIsDropped(t *testing.T) {
	recorder := &fakeRecorder{}
	sender := &fakeSender{}
	d := testDispatcher(recorder, sender)

	if err := d.HandleBooked(context.Background(), kafka.Message{Value: []byte("{")}); err != nil {
		t.Fatalf("malformed payloads are dropped, not retried: %v", err)
	}
	if len(sender.sent) != 0 || len(recorder.notifications) != 0 {
		t.Fatal("nothing should be sent for a malformed payload")
	}
}
