package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/purelife/meetings/libs/db"
	"github.com/purelife/meetings/services/notification-service/internal/email"
	"github.com/purelife/meetings/services/notification-service/internal/outbox"
	"github.com/purelife/meetings/services/notification-service/internal/storage"
)

// Recorder persists delivery attempts and their outcome events.
type Recorder interface {
	Record(ctx context.Context, n storage.Notification) error
	Outcome(ctx context.Context, evt outbox.Event) error
}

// PGRecorder writes notifications to Postgres and outcomes to the outbox.
type PGRecorder struct {
	pool          *db.Pool
	notifications *storage.Repository
	outboxRepo    *outbox.Repository
}

func NewPGRecorder(pool *db.Pool, notifications *storage.Repository, outboxRepo *outbox.Repository) *PGRecorder {
	return &PGRecorder{pool: pool, notifications: notifications, outboxRepo: outboxRepo}
}

func (r *PGRecorder) Record(ctx context.Context, n storage.Notification) error {
	return r.notifications.Insert(ctx, n)
}

func (r *PGRecorder) Outcome(ctx context.Context, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Dispatcher turns booking lifecycle events into emails for both
// participants and records every attempt.
type Dispatcher struct {
	recorder Recorder
	sender   email.Sender
	logger   *slog.Logger
}

func NewDispatcher(recorder Recorder, sender email.Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{recorder: recorder, sender: sender, logger: logger}
}

type bookedPayload struct {
	MeetingID     string    `json:"meeting_id"`
	HostID        string    `json:"host_id"`
	HostName      string    `json:"host_name"`
	HostEmail     string    `json:"host_email"`
	AttendeeName  string    `json:"attendee_name"`
	AttendeeEmail string    `json:"attendee_email"`
	MeetingType   string    `json:"meeting_type"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type cancelledPayload struct {
	MeetingID     string    `json:"meeting_id"`
	HostID        string    `json:"host_id"`
	HostName      string    `json:"host_name"`
	HostEmail     string    `json:"host_email"`
	AttendeeName  string    `json:"attendee_name"`
	AttendeeEmail string    `json:"attendee_email"`
	MeetingType   string    `json:"meeting_type"`
	StartTime     time.Time `json:"start_time"`
	Reason        string    `json:"reason"`
}

func (d *Dispatcher) HandleBooked(ctx context.Context, msg kafka.Message) error {
	var payload bookedPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		d.logger.Error("invalid booked payload", "err", err)
		return nil
	}
	if payload.MeetingID == "" || payload.HostID == "" || payload.AttendeeEmail == "" {
		d.logger.Error("missing booked event fields", "meeting_id", payload.MeetingID)
		return nil
	}

	m := email.Meeting{
		MeetingID:    payload.MeetingID,
		HostName:     payload.HostName,
		AttendeeName: payload.AttendeeName,
		MeetingType:  payload.MeetingType,
		StartTime:    payload.StartTime,
		EndTime:      payload.EndTime,
	}

	attendeeSubject, attendeeBody := email.BookedForAttendee(m)
	if err := d.deliver(ctx, payload.MeetingID, payload.HostID, payload.AttendeeEmail, attendeeSubject, attendeeBody); err != nil {
		return err
	}
	if payload.HostEmail != "" {
		hostSubject, hostBody := email.BookedForHost(m)
		if err := d.deliver(ctx, payload.MeetingID, payload.HostID, payload.HostEmail, hostSubject, hostBody); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) HandleCancelled(ctx context.Context, msg kafka.Message) error {
	var payload cancelledPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		d.logger.Error("invalid cancelled payload", "err", err)
		return nil
	}
	if payload.MeetingID == "" || payload.HostID == "" || payload.AttendeeEmail == "" {
		d.logger.Error("missing cancelled event fields", "meeting_id", payload.MeetingID)
		return nil
	}

	m := email.Meeting{
		MeetingID:    payload.MeetingID,
		HostName:     payload.HostName,
		AttendeeName: payload.AttendeeName,
		MeetingType:  payload.MeetingType,
		StartTime:    payload.StartTime,
		CancelReason: payload.Reason,
	}

	attendeeSubject, attendeeBody := email.CancelledForAttendee(m)
	if err := d.deliver(ctx, payload.MeetingID, payload.HostID, payload.AttendeeEmail, attendeeSubject, attendeeBody); err != nil {
		return err
	}
	if payload.HostEmail != "" {
		hostSubject, hostBody := email.CancelledForHost(m)
		if err := d.deliver(ctx, payload.MeetingID, payload.HostID, payload.HostEmail, hostSubject, hostBody); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends one email and records the attempt. Send failures are
// recorded and emitted as notification.failed events rather than retried;
// the meeting itself is unaffected by delivery problems.
func (d *Dispatcher) deliver(ctx context.Context, meetingID, hostID, recipient, subject, body string) error {
	status := "sent"
	failureReason := ""
	if err := d.sender.Send(recipient, subject, body); err != nil {
		status = "failed"
		failureReason = err.Error()
		d.logger.Error("email send failed", "err", err, "recipient", recipient)
	}

	if err := d.recorder.Record(ctx, storage.Notification{
		MeetingID: meetingID,
		HostID:    hostID,
		Channel:   "email",
		Recipient: recipient,
		Payload:   map[string]any{"subject": subject},
		Status:    status,
	}); err != nil {
		d.logger.Error("failed to persist notification", "err", err)
		return err
	}

	outcome := map[string]any{
		"meeting_id": meetingID,
		"host_id":    hostID,
		"channel":    "email",
	}
	eventType := outbox.TopicNotificationSent
	if status == "failed" {
		eventType = outbox.TopicNotificationFailed
		outcome["error_reason"] = failureReason
		outcome["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	} else {
		outcome["sent_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	eventPayload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	if err := d.recorder.Outcome(ctx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   meetingID,
		EventType:     eventType,
		Payload:       eventPayload,
	}); err != nil {
		d.logger.Error("failed to enqueue notification outcome", "err", err)
		return err
	}
	return nil
}
