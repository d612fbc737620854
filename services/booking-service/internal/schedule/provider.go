package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Window is one bookable range resolved for a day, in host-local minutes
// from midnight.
type Window struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
	SlotMinutes int `json:"slot_minutes"`
}

// Day is the resolved schedule for one host, one calendar day and one
// meeting type. Blackout means a date exception suppressed the whole day.
type Day struct {
	Date     string   `json:"date"`
	Timezone string   `json:"timezone"`
	Blackout bool     `json:"blackout"`
	Windows  []Window `json:"windows"`
}

// Provider resolves a host's schedule for a day.
type Provider interface {
	Day(ctx context.Context, hostID string, date time.Time, meetingType string) (Day, error)
}

// HTTPProvider resolves days over the availability service's internal API.
type HTTPProvider struct {
	baseURL string
	http    *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

func (p *HTTPProvider) Day(ctx context.Context, hostID string, date time.Time, meetingType string) (Day, error) {
	q := url.Values{}
	q.Set("host_id", hostID)
	q.Set("date", date.Format("2006-01-02"))
	if meetingType != "" {
		q.Set("meeting_type", meetingType)
	}

	endpoint := p.baseURL + "/internal/v1/day?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Day{}, err
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return Day{}, fmt.Errorf("resolve day: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Day{}, fmt.Errorf("resolve day: availability service returned %d", resp.StatusCode)
	}

	var day Day
	if err := json.NewDecoder(resp.Body).Decode(&day); err != nil {
		return Day{}, fmt.Errorf("resolve day: decode response: %w", err)
	}
	return day, nil
}
