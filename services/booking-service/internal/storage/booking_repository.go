package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/oauth2"

	"github.com/purelife/meetings/libs/db"
	"github.com/purelife/meetings/services/booking-service/internal/calendar"
	"github.com/purelife/meetings/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	HostID          string
	IdempotencyKey  string
	MeetingID       string
	StatusCode      int
	ResponsePayload []byte
}

// HostContact is the platform profile data needed to notify a host.
type HostContact struct {
	HostID string
	Name   string
	Email  string
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, hostID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, hostID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (host_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (host_id, idempotency_key) DO NOTHING
	`, hostID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, hostID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, hostID, key, meetingID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET meeting_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE host_id = $1 AND idempotency_key = $2
	`, hostID, key, meetingID, statusCode, response)
	return err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO meetings
			(host_id, attendee_id, attendee_name, attendee_email, meeting_type, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, booking.HostID, booking.AttendeeID, booking.AttendeeName, booking.AttendeeEmail, booking.MeetingType,
		booking.StartTime, booking.EndTime, booking.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateRegistrations records the host and attendee as participants so the
// meeting blocks both calendars symmetrically.
func (r *BookingRepository) CreateRegistrations(ctx context.Context, tx pgx.Tx, meetingID, hostID, attendeeID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO meeting_registrations (meeting_id, user_id, role)
		VALUES ($1, $2, 'host'), ($1, $3, 'attendee')
	`, meetingID, hostID, attendeeID)
	return err
}

func (r *BookingRepository) DeleteRegistrations(ctx context.Context, tx pgx.Tx, meetingID string) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM meeting_registrations WHERE meeting_id = $1
	`, meetingID)
	return err
}

// LockOverlapping reads any still-booked meetings intersecting the window
// under row locks, so a concurrent booking of the same slot serializes here.
func (r *BookingRepository) LockOverlapping(ctx context.Context, tx pgx.Tx, hostID string, start, end time.Time) ([]model.Booking, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, host_id, attendee_id, attendee_name, attendee_email, meeting_type,
			start_time, end_time, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM meetings
		WHERE host_id = $1
			AND status = 'booked'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
		FOR UPDATE
	`, hostID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, hostID, meetingID string) (model.Booking, error) {
	var booking model.Booking
	var cancelledAt *time.Time
	err := tx.QueryRow(ctx, `
		SELECT id, host_id, attendee_id, attendee_name, attendee_email, meeting_type,
			start_time, end_time, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM meetings
		WHERE id = $1 AND host_id = $2
		FOR UPDATE
	`, meetingID, hostID).Scan(
		&booking.ID,
		&booking.HostID,
		&booking.AttendeeID,
		&booking.AttendeeName,
		&booking.AttendeeEmail,
		&booking.MeetingType,
		&booking.StartTime,
		&booking.EndTime,
		&booking.Status,
		&cancelledAt,
		&booking.CancelReason,
		&booking.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	booking.CancelledAt = cancelledAt
	return booking, nil
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, hostID, meetingID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE meetings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE id = $1 AND host_id = $2
		RETURNING cancelled_at
	`, meetingID, hostID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// ListBookedIntervals returns still-booked meetings intersecting the window.
// Used for slot conflict filtering, so only the time columns matter.
func (r *BookingRepository) ListBookedIntervals(ctx context.Context, hostID string, start, end time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, host_id, attendee_id, attendee_name, attendee_email, meeting_type,
			start_time, end_time, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM meetings
		WHERE host_id = $1
			AND status = 'booked'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, hostID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, host_id, attendee_id, attendee_name, attendee_email, meeting_type,
			start_time, end_time, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM meetings
		WHERE host_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, hostID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *BookingRepository) ListByAttendee(ctx context.Context, attendeeID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, host_id, attendee_id, attendee_name, attendee_email, meeting_type,
			start_time, end_time, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM meetings
		WHERE attendee_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, attendeeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// BlockingEventsFor returns platform events intersecting the window that the
// host or the attendee is registered for. Retreats, workshops and similar
// events make their participants unavailable for meetings.
func (r *BookingRepository) BlockingEventsFor(ctx context.Context, hostID, attendeeID string, start, end time.Time) ([]model.BlockingEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT e.id, e.title, e.event_type, e.start_time, e.end_time
		FROM platform_events e
		JOIN event_registrations reg ON reg.event_id = e.id
		WHERE reg.user_id = ANY($1)
			AND e.start_time < $3
			AND e.end_time > $2
		ORDER BY e.start_time ASC
	`, []string{hostID, attendeeID}, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.BlockingEvent
	for rows.Next() {
		var ev model.BlockingEvent
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.EventType, &ev.StartTime, &ev.EndTime); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func (r *BookingRepository) HostContact(ctx context.Context, hostID string) (HostContact, error) {
	var contact HostContact
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, email
		FROM hosts
		WHERE id = $1
	`, hostID).Scan(&contact.HostID, &contact.Name, &contact.Email)
	if err != nil {
		return HostContact{}, err
	}
	return contact, nil
}

// CalendarToken implements calendar.CredentialsStore. A missing row means
// the host never linked a calendar.
func (r *BookingRepository) CalendarToken(ctx context.Context, hostID string) (*oauth2.Token, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT token
		FROM calendar_credentials
		WHERE host_id = $1
	`, hostID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, calendar.ErrNotLinked
	}
	if err != nil {
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *BookingRepository) SaveCalendarToken(ctx context.Context, hostID string, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO calendar_credentials (host_id, token)
		VALUES ($1, $2)
		ON CONFLICT (host_id) DO UPDATE SET token = EXCLUDED.token, updated_at = now()
	`, hostID, raw)
	return err
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		var booking model.Booking
		var cancelledAt *time.Time
		if err := rows.Scan(
			&booking.ID,
			&booking.HostID,
			&booking.AttendeeID,
			&booking.AttendeeName,
			&booking.AttendeeEmail,
			&booking.MeetingType,
			&booking.StartTime,
			&booking.EndTime,
			&booking.Status,
			&cancelledAt,
			&booking.CancelReason,
			&booking.CreatedAt,
		); err != nil {
			return nil, err
		}
		booking.CancelledAt = cancelledAt
		bookings = append(bookings, booking)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, hostID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT host_id::text,
			idempotency_key,
			COALESCE(meeting_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE host_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, hostID, key).Scan(
		&rec.HostID,
		&rec.IdempotencyKey,
		&rec.MeetingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
