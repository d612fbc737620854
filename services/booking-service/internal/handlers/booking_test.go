package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/purelife/meetings/libs/auth"
	"github.com/purelife/meetings/services/booking-service/internal/conflict"
	"github.com/purelife/meetings/services/booking-service/internal/schedule"
)

func signedToken(t *testing.T, claims auth.Claims, secret []byte) string {
	t.Helper()
	token, err := auth.SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestClaimsFromRequest(t *testing.T) {
	secret := []byte("test-secret")
	h := &BookingHandler{secret: secret}

	token := signedToken(t, auth.Claims{
		Sub:  "member-1",
		Role: "member",
		Exp:  time.Now().Add(time.Hour).Unix(),
	}, secret)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/meetings", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	claims, ok := h.claimsFromRequest(w, r)
	if !ok {
		t.Fatalf("expected valid claims, got %d", w.Code)
	}
	if claims.Sub != "member-1" || claims.Role != "member" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestClaimsFromRequest_Rejections(t *testing.T) {
	secret := []byte("test-secret")
	h := &BookingHandler{secret: secret}
	exp := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing header", token: "", want: http.StatusUnauthorized},
		{name: "wrong secret", token: signedToken(t, auth.Claims{Sub: "member-1", Exp: exp}, []byte("other")), want: http.StatusUnauthorized},
		{name: "empty subject", token: signedToken(t, auth.Claims{Role: "member", Exp: exp}, secret), want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/meetings", nil)
		if tc.token != "" {
			r.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		if _, ok := h.claimsFromRequest(w, r); ok {
			t.Fatalf("%s: expected rejection", tc.name)
		}
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestMatchCandidate(t *testing.T) {
	windows := []schedule.Window{
		{StartMinute: 540, EndMinute: 720, SlotMinutes: 60},
		{StartMinute: 780, EndMinute: 840, SlotMinutes: 30},
	}

	duration, ok := matchCandidate(windows, 600)
	if !ok || duration != 60 {
		t.Fatalf("expected the 60 minute slot at 10:00, got ok=%v duration=%d", ok, duration)
	}

	duration, ok = matchCandidate(windows, 810)
	if !ok || duration != 30 {
		t.Fatalf("expected the 30 minute slot at 13:30, got ok=%v duration=%d", ok, duration)
	}

	// 09:30 is not on the hourly grid of the first window.
	if _, ok := matchCandidate(windows, 570); ok {
		t.Fatal("off-grid start must not match")
	}

	// 13:30 plus 30 minutes fits; 13:45 is off the half-hour grid.
	if _, ok := matchCandidate(windows, 825); ok {
		t.Fatal("off-grid start must not match")
	}
}

func TestConflictMessage(t *testing.T) {
	if got := conflictMessage(conflict.ErrSlotTaken); got != "time slot already booked" {
		t.Fatalf("unexpected slot-taken message %q", got)
	}

	blocking := &conflict.BlockingConflictError{Title: "Mindfulness Retreat", EventType: "retreat"}
	got := conflictMessage(blocking)
	if got != blocking.Error() {
		t.Fatalf("blocking conflicts must surface the event, got %q", got)
	}
}

func TestExpandWindows(t *testing.T) {
	windows := []schedule.Window{
		{StartMinute: 600, EndMinute: 660, SlotMinutes: 60},
		{StartMinute: 540, EndMinute: 660, SlotMinutes: 60},
	}
	got := expandWindows(windows)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates after dedupe, got %d", len(got))
	}
	if got[0].StartMinute != 540 || got[1].StartMinute != 600 {
		t.Fatalf("candidates must be ordered by minute of day, got %+v", got)
	}
}
