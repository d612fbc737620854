package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/purelife/meetings/libs/auth"
	"github.com/purelife/meetings/services/booking-service/internal/calendar"
	"github.com/purelife/meetings/services/booking-service/internal/conflict"
	"github.com/purelife/meetings/services/booking-service/internal/model"
	"github.com/purelife/meetings/services/booking-service/internal/notify"
	"github.com/purelife/meetings/services/booking-service/internal/outbox"
	"github.com/purelife/meetings/services/booking-service/internal/schedule"
	"github.com/purelife/meetings/services/booking-service/internal/slots"
	"github.com/purelife/meetings/services/booking-service/internal/storage"
)

type BookingHandler struct {
	repo       *storage.BookingRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	schedule   schedule.Provider
	busy       calendar.BusySource
	notifier   *notify.Notifier
	secret     []byte
	now        func() time.Time
}

func NewBookingHandler(repo *storage.BookingRepository, outboxRepo *outbox.Repository, logger *slog.Logger, scheduleProvider schedule.Provider, busySource calendar.BusySource, notifier *notify.Notifier, tokenSecret []byte) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
		schedule:   scheduleProvider,
		busy:       busySource,
		notifier:   notifier,
		secret:     tokenSecret,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (h *BookingHandler) claimsFromRequest(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return nil, false
	}
	claims, err := auth.VerifyHS256(token, h.secret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}
	if claims.Sub == "" {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}
	return claims, true
}

type slotItem struct {
	StartMinute int    `json:"start_minute"`
	StartUTC    string `json:"start_utc"`
	EndUTC      string `json:"end_utc"`
	HostTime    string `json:"host_time"`
	ViewerTime  string `json:"viewer_time"`
}

type slotsResponse struct {
	HostID       string     `json:"host_id"`
	Date         string     `json:"date"`
	HostTimezone string     `json:"host_timezone"`
	ViewerTz     string     `json:"viewer_timezone"`
	Blackout     bool       `json:"blackout"`
	Slots        []slotItem `json:"slots"`
}

// Slots lists the open slots for a host on one day, as seen by the caller.
// Times are offered in three forms: the canonical UTC instant used for
// booking, the host's wall clock, and the viewer's wall clock.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := h.claimsFromRequest(w, r)
	if !ok {
		return
	}

	hostID := strings.TrimSpace(r.URL.Query().Get("host_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	meetingType := strings.TrimSpace(r.URL.Query().Get("meeting_type"))
	if hostID == "" || dateStr == "" {
		http.Error(w, "host_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date, use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	day, err := h.schedule.Day(r.Context(), hostID, date, meetingType)
	if err != nil {
		h.logger.Error("schedule resolution failed", "host_id", hostID, "err", err)
		http.Error(w, "availability service unavailable", http.StatusServiceUnavailable)
		return
	}

	hostLoc, err := time.LoadLocation(day.Timezone)
	if err != nil {
		http.Error(w, "host timezone misconfigured", http.StatusInternalServerError)
		return
	}
	viewerTz := strings.TrimSpace(r.URL.Query().Get("viewer_tz"))
	viewerLoc := hostLoc
	if viewerTz != "" {
		viewerLoc, err = time.LoadLocation(viewerTz)
		if err != nil {
			http.Error(w, "invalid viewer_tz", http.StatusBadRequest)
			return
		}
	}

	resp := slotsResponse{
		HostID:       hostID,
		Date:         dateStr,
		HostTimezone: day.Timezone,
		ViewerTz:     viewerLoc.String(),
		Blackout:     day.Blackout,
		Slots:        []slotItem{},
	}
	if day.Blackout || len(day.Windows) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	localDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, hostLoc)
	dayStart := localDay.UTC()
	dayEnd := localDay.AddDate(0, 0, 1).UTC()

	busy, err := h.collectBusy(r.Context(), hostID, claims.Sub, dayStart, dayEnd)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	candidates := expandWindows(day.Windows)
	open := conflict.Resolve(candidates, localDay, hostLoc, viewerLoc, busy, h.now())
	for _, s := range open {
		resp.Slots = append(resp.Slots, slotItem{
			StartMinute: s.StartMinute,
			StartUTC:    s.StartUTC.Format(time.RFC3339),
			EndUTC:      s.EndUTC.Format(time.RFC3339),
			HostTime:    s.HostLabel,
			ViewerTime:  s.ViewerLabel,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// collectBusy merges every busy source for the window: confirmed bookings,
// platform events blocking either participant, and the host's external
// calendar. The external calendar is best effort; when it is unreachable the
// internal sources still apply.
func (h *BookingHandler) collectBusy(ctx context.Context, hostID, attendeeID string, start, end time.Time) ([]conflict.Interval, error) {
	booked, err := h.repo.ListBookedIntervals(ctx, hostID, start, end)
	if err != nil {
		return nil, err
	}
	busy := make([]conflict.Interval, 0, len(booked))
	for _, b := range booked {
		busy = append(busy, conflict.Interval{Start: b.StartTime, End: b.EndTime})
	}

	events, err := h.repo.BlockingEventsFor(ctx, hostID, attendeeID, start, end)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		busy = append(busy, conflict.Interval{Start: ev.StartTime, End: ev.EndTime})
	}

	if h.busy != nil {
		external, err := h.busy.BusyIntervals(ctx, hostID, start, end)
		if err != nil && !errors.Is(err, calendar.ErrNotLinked) {
			h.logger.Warn("external calendar lookup failed, continuing without it", "host_id", hostID, "err", err)
		}
		for _, iv := range external {
			busy = append(busy, conflict.Interval{Start: iv.Start, End: iv.End})
		}
	}
	return busy, nil
}

func expandWindows(windows []schedule.Window) []slots.Candidate {
	in := make([]slots.Window, 0, len(windows))
	for _, w := range windows {
		in = append(in, slots.Window{
			StartMinute: w.StartMinute,
			EndMinute:   w.EndMinute,
			SlotMinutes: w.SlotMinutes,
		})
	}
	return slots.Expand(in)
}

type createBookingRequest struct {
	HostID        string `json:"host_id"`
	Date          string `json:"date"`
	StartMinute   int    `json:"start_minute"`
	MeetingType   string `json:"meeting_type"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
}

type createBookingResponse struct {
	MeetingID string `json:"meeting_id"`
	StartUTC  string `json:"start_utc"`
	EndUTC    string `json:"end_utc"`
}

// Create books a slot. The requested slot must exist on the host's resolved
// schedule for that day; the window is then re-validated inside the
// transaction under row locks, and the exclusion constraint backstops any
// race the locks miss.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := h.claimsFromRequest(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.HostID = strings.TrimSpace(req.HostID)
	req.Date = strings.TrimSpace(req.Date)
	req.MeetingType = strings.TrimSpace(req.MeetingType)
	req.AttendeeName = strings.TrimSpace(req.AttendeeName)
	req.AttendeeEmail = strings.TrimSpace(req.AttendeeEmail)
	if req.HostID == "" || req.Date == "" || req.AttendeeName == "" || req.AttendeeEmail == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		http.Error(w, "invalid date, use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	day, err := h.schedule.Day(ctx, req.HostID, date, req.MeetingType)
	if err != nil {
		h.logger.Error("schedule resolution failed", "host_id", req.HostID, "err", err)
		http.Error(w, "availability service unavailable", http.StatusServiceUnavailable)
		return
	}
	if day.Blackout {
		http.Error(w, "host is unavailable on this date", http.StatusUnprocessableEntity)
		return
	}

	duration, found := matchCandidate(day.Windows, req.StartMinute)
	if !found {
		http.Error(w, "requested time is outside host availability", http.StatusUnprocessableEntity)
		return
	}

	hostLoc, err := time.LoadLocation(day.Timezone)
	if err != nil {
		http.Error(w, "host timezone misconfigured", http.StatusInternalServerError)
		return
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, req.StartMinute, 0, 0, hostLoc).UTC()
	end := start.Add(time.Duration(duration) * time.Minute)
	if !start.After(h.now()) {
		http.Error(w, "slot is in the past", http.StatusUnprocessableEntity)
		return
	}

	booking := &model.Booking{
		HostID:        req.HostID,
		AttendeeID:    claims.Sub,
		AttendeeName:  req.AttendeeName,
		AttendeeEmail: req.AttendeeEmail,
		MeetingType:   req.MeetingType,
		StartTime:     start,
		EndTime:       end,
		Status:        "booked",
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, booking.HostID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	// Re-check the window under row locks. Cancelled meetings release their
	// slot, so only still-booked rows count.
	locked, err := h.repo.LockOverlapping(ctx, tx, booking.HostID, start, end)
	if err != nil {
		http.Error(w, "failed to check for conflicts", http.StatusInternalServerError)
		return
	}
	lockedIntervals := make([]conflict.Interval, 0, len(locked))
	for _, b := range locked {
		lockedIntervals = append(lockedIntervals, conflict.Interval{Start: b.StartTime, End: b.EndTime})
	}
	blocking, err := h.repo.BlockingEventsFor(ctx, booking.HostID, booking.AttendeeID, start, end)
	if err != nil {
		http.Error(w, "failed to check for conflicts", http.StatusInternalServerError)
		return
	}
	if err := conflict.CheckWindow(start, end, lockedIntervals, blocking); err != nil {
		h.writeConflict(ctx, tx, w, booking.HostID, idempotencyKey, err)
		return
	}

	id, err := h.repo.Create(ctx, tx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			// The exclusion constraint aborted the transaction, so the
			// idempotency record cannot be finalized here. A retry with the
			// same key re-runs the checks and gets the same 409.
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create meeting", http.StatusInternalServerError)
		return
	}
	booking.ID = id

	if err := h.repo.CreateRegistrations(ctx, tx, id, booking.HostID, booking.AttendeeID); err != nil {
		http.Error(w, "failed to register participants", http.StatusInternalServerError)
		return
	}

	contact, err := h.repo.HostContact(ctx, booking.HostID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "unknown host", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "failed to load host profile", http.StatusInternalServerError)
		return
	}

	bookedEvt, err := outbox.MeetingBooked(*booking, contact.Name, contact.Email)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	syncEvt, err := outbox.CalendarSyncRequested(*booking)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, bookedEvt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, syncEvt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(createBookingResponse{
		MeetingID: id,
		StartUTC:  start.Format(time.RFC3339),
		EndUTC:    end.Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, booking.HostID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.notifier.AvailabilityChanged(ctx, booking.HostID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

// matchCandidate verifies the requested start lies on the slot grid of some
// resolved window and returns that window's duration.
func matchCandidate(windows []schedule.Window, startMinute int) (int, bool) {
	for _, c := range expandWindows(windows) {
		if c.StartMinute == startMinute {
			return c.DurationMinutes, true
		}
	}
	return 0, false
}

// conflictMessage maps a window conflict to the 409 body: blocking events
// surface their title, everything else reads as a taken slot.
func conflictMessage(err error) string {
	var blockingErr *conflict.BlockingConflictError
	if errors.As(err, &blockingErr) {
		return blockingErr.Error()
	}
	return "time slot already booked"
}

func (h *BookingHandler) writeConflict(ctx context.Context, tx pgx.Tx, w http.ResponseWriter, hostID, idempotencyKey string, err error) {
	msg := conflictMessage(err)
	if idempotencyKey != "" {
		body, marshalErr := json.Marshal(map[string]string{"error": msg})
		if marshalErr == nil {
			if finErr := h.repo.FinalizeIdempotency(ctx, tx, hostID, idempotencyKey, "", http.StatusConflict, body); finErr == nil {
				_ = tx.Commit(ctx)
			} else {
				h.logger.Error("failed to finalize idempotency (conflict)", "err", finErr)
			}
		}
	}
	http.Error(w, msg, http.StatusConflict)
}

type cancelBookingRequest struct {
	MeetingID string `json:"meeting_id"`
	Reason    string `json:"reason"`
}

type cancelBookingResponse struct {
	MeetingID   string `json:"meeting_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

// Cancel releases a booked slot. Cancelling an already-cancelled meeting
// succeeds with the original cancellation time, so retries are harmless.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := h.claimsFromRequest(w, r)
	if !ok {
		return
	}
	if claims.Role != "host" || claims.HostID == "" {
		http.Error(w, "host role required", http.StatusForbidden)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.MeetingID = strings.TrimSpace(req.MeetingID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.MeetingID == "" {
		http.Error(w, "meeting_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, claims.HostID, req.MeetingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "meeting not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load meeting", http.StatusInternalServerError)
		return
	}

	if booking.Status == "cancelled" && booking.CancelledAt != nil {
		h.writeCancelResponse(w, booking.ID, booking.CancelledAt.UTC())
		return
	}
	if booking.Status != "booked" {
		http.Error(w, "meeting cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, claims.HostID, booking.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel meeting", http.StatusInternalServerError)
		return
	}
	if err := h.repo.DeleteRegistrations(ctx, tx, booking.ID); err != nil {
		http.Error(w, "failed to release registrations", http.StatusInternalServerError)
		return
	}

	contact, err := h.repo.HostContact(ctx, booking.HostID)
	if err != nil {
		if !storage.IsNotFound(err) {
			http.Error(w, "failed to load host profile", http.StatusInternalServerError)
			return
		}
		h.logger.Warn("host contact missing, cancellation event omits host details", "host_id", booking.HostID, "meeting_id", booking.ID)
	}

	cancelEvt, err := outbox.MeetingCancelled(booking, contact.Name, contact.Email, req.Reason, cancelledAt)
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, cancelEvt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.notifier.AvailabilityChanged(ctx, booking.HostID)
	h.writeCancelResponse(w, booking.ID, cancelledAt.UTC())
}

type listMeetingItem struct {
	MeetingID     string `json:"meeting_id"`
	HostID        string `json:"host_id"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
	MeetingType   string `json:"meeting_type,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// List returns the caller's meetings: hosts see the meetings they host,
// everyone else sees the meetings they attend.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := h.claimsFromRequest(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var bookings []model.Booking
	var err error
	if claims.Role == "host" && claims.HostID != "" {
		bookings, err = h.repo.ListByHost(r.Context(), claims.HostID, limit)
	} else {
		bookings, err = h.repo.ListByAttendee(r.Context(), claims.Sub, limit)
	}
	if err != nil {
		http.Error(w, "failed to list meetings", http.StatusInternalServerError)
		return
	}

	items := make([]listMeetingItem, 0, len(bookings))
	for _, b := range bookings {
		item := listMeetingItem{
			MeetingID:     b.ID,
			HostID:        b.HostID,
			AttendeeName:  b.AttendeeName,
			AttendeeEmail: b.AttendeeEmail,
			MeetingType:   b.MeetingType,
			StartTime:     b.StartTime.UTC().Format(time.RFC3339),
			EndTime:       b.EndTime.UTC().Format(time.RFC3339),
			Status:        b.Status,
			CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if b.CancelledAt != nil {
			item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, meetingID string, cancelledAt time.Time) {
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		MeetingID:   meetingID,
		Status:      "cancelled",
		CancelledAt: cancelledAt.Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
