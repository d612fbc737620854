package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/purelife/meetings/services/booking-service/internal/calendar"
	"github.com/purelife/meetings/services/booking-service/internal/outbox"
)

// CalendarSyncHandler mirrors booked meetings into the host's external
// calendar. Hosts without a linked calendar are skipped quietly.
func CalendarSyncHandler(logger *slog.Logger, writer calendar.EventWriter) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload outbox.CalendarSyncPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			return fmt.Errorf("decode calendar sync payload: %w", err)
		}

		summary := "Meeting with " + payload.AttendeeName
		if payload.MeetingType != "" {
			summary = fmt.Sprintf("%s: %s", payload.MeetingType, payload.AttendeeName)
		}

		externalID, err := writer.CreateEvent(ctx, payload.HostID, calendar.Event{
			Summary:     summary,
			Description: "Booked via Pure Life (" + payload.MeetingID + ")",
			Start:       payload.StartTime,
			End:         payload.EndTime,
			Attendees:   []string{payload.AttendeeEmail},
		})
		if errors.Is(err, calendar.ErrNotLinked) {
			logger.Info("calendar not linked, skipping sync", "host_id", payload.HostID, "meeting_id", payload.MeetingID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("sync meeting %s: %w", payload.MeetingID, err)
		}

		logger.Info("meeting synced to external calendar",
			"meeting_id", payload.MeetingID,
			"host_id", payload.HostID,
			"external_event_id", externalID,
		)
		return nil
	}
}
