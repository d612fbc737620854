package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrNotLinked means the host has no external calendar connected. Callers
// treat it as "no external busy time" rather than a failure.
var ErrNotLinked = errors.New("calendar not linked")

// Interval is a half-open busy range [Start, End) in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Event is one meeting to mirror into the host's external calendar.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// BusySource reports external busy intervals for a host over a range.
type BusySource interface {
	BusyIntervals(ctx context.Context, hostID string, from, to time.Time) ([]Interval, error)
}

// EventWriter mirrors bookings into the host's external calendar.
type EventWriter interface {
	CreateEvent(ctx context.Context, hostID string, ev Event) (string, error)
}

// NoopClient is used when no calendar provider is configured. Every host
// looks unlinked, so scheduling proceeds on internal data alone.
type NoopClient struct{}

func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

func (c *NoopClient) BusyIntervals(_ context.Context, _ string, _, _ time.Time) ([]Interval, error) {
	return nil, ErrNotLinked
}

func (c *NoopClient) CreateEvent(_ context.Context, _ string, _ Event) (string, error) {
	return "", ErrNotLinked
}
