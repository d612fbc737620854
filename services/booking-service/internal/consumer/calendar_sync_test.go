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

	"github.com/purelife/meetings/services/booking-service/internal/calendar"
	"github.com/purelife/meetings/services/booking-service/internal/outbox"
)

type fakeEventWriter struct {
	events []calendar.Event
	err    error
}

func (w *fakeEventWriter) CreateEvent(_ context.Context, _ string, ev calendar.Event) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.events = append(w.events, ev)
	return "ext-1", nil
}

func syncMessage(t *testing.T, payload outbox.CalendarSyncPayload) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return kafka.Message{Value: raw}
}

func TestCalendarSyncHandler_CreatesEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	writer := &fakeEventWriter{}
	handler := CalendarSyncHandler(logger, writer)

	start := time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC)
	msg := syncMessage(t, outbox.CalendarSyncPayload{
		MeetingID:     "m-1",
		HostID:        "host-1",
		AttendeeName:  "Anna",
		AttendeeEmail: "anna@example.com",
		MeetingType:   "consultation",
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
	})

	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(writer.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(writer.events))
	}
	ev := writer.events[0]
	if ev.Summary != "consultation: Anna" {
		t.Fatalf("unexpected summary %q", ev.Summary)
	}
	if len(ev.Attendees) != 1 || ev.Attendees[0] != "anna@example.com" {
		t.Fatalf("unexpected attendees %v", ev.Attendees)
	}
}

func TestCalendarSyncHandler_SkipsUnlinkedHost(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	writer := &fakeEventWriter{err: calendar.ErrNotLinked}
	handler := CalendarSyncHandler(logger, writer)

	msg := syncMessage(t, outbox.CalendarSyncPayload{MeetingID: "m-1", HostID: "host-1"})
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("unlinked host must not fail the handler: %v", err)
	}
}

func TestCalendarSyncHandler_PropagatesProviderError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	writer := &fakeEventWriter{err: errors.New("quota exceeded")}
	handler := CalendarSyncHandler(logger, writer)

	msg := syncMessage(t, outbox.CalendarSyncPayload{MeetingID: "m-1", HostID: "host-1"})
	if err := handler(context.Background(), msg); err == nil {
		t.Fatal("expected provider error to propagate for redelivery")
	}
}

func TestCalendarSyncHandler_RejectsMalformedPayload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := CalendarSyncHandler(logger, &fakeEventWriter{})

	if err := handler(context.Background(), kafka.Message{Value: []byte("{")}); err == nil {
		t.Fatal("expected a decode error")
	}
}
