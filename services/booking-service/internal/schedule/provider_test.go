package schedule

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProvider_Day(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/v1/day" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("host_id") != "host-1" {
			t.Errorf("unexpected host_id %q", r.URL.Query().Get("host_id"))
		}
		if r.URL.Query().Get("date") != "2026-02-04" {
			t.Errorf("unexpected date %q", r.URL.Query().Get("date"))
		}
		if r.URL.Query().Get("meeting_type") != "consultation" {
			t.Errorf("unexpected meeting_type %q", r.URL.Query().Get("meeting_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"date":"2026-02-04","timezone":"Europe/Warsaw","blackout":false,"windows":[{"start_minute":540,"end_minute":720,"slot_minutes":60}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)
	day, err := p.Day(context.Background(), "host-1", date, "consultation")
	if err != nil {
		t.Fatalf("day: %v", err)
	}
	if day.Timezone != "Europe/Warsaw" {
		t.Fatalf("unexpected timezone %q", day.Timezone)
	}
	if day.Blackout {
		t.Fatal("day must not be a blackout")
	}
	if len(day.Windows) != 1 || day.Windows[0].StartMinute != 540 {
		t.Fatalf("unexpected windows %+v", day.Windows)
	}
}

func TestHTTPProvider_Day_Blackout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("meeting_type") {
			t.Error("meeting_type must be omitted when empty")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"date":"2026-02-04","timezone":"Europe/Warsaw","blackout":true,"windows":[]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)
	day, err := p.Day(context.Background(), "host-1", date, "")
	if err != nil {
		t.Fatalf("day: %v", err)
	}
	if !day.Blackout {
		t.Fatal("expected a blackout day")
	}
	if len(day.Windows) != 0 {
		t.Fatalf("blackout day must carry no windows, got %+v", day.Windows)
	}
}

func TestHTTPProvider_Day_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown host"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	date := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)
	if _, err := p.Day(context.Background(), "missing", date, ""); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
