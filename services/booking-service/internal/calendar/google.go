package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CredentialsStore loads the OAuth token a host linked their calendar with.
// Implementations return ErrNotLinked when no token exists.
type CredentialsStore interface {
	CalendarToken(ctx context.Context, hostID string) (*oauth2.Token, error)
}

// GoogleClient reads busy time from and writes meetings to a host's Google
// Calendar. Tokens are resolved per host through the credentials store.
type GoogleClient struct {
	config *oauth2.Config
	tokens CredentialsStore
}

func NewGoogleClient(clientID, clientSecret, redirectURL string, tokens CredentialsStore) (*GoogleClient, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("google calendar client id and secret are required")
	}
	return &GoogleClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				calendarapi.CalendarEventsScope,
				calendarapi.CalendarReadonlyScope,
			},
			Endpoint: google.Endpoint,
		},
		tokens: tokens,
	}, nil
}

func (c *GoogleClient) service(ctx context.Context, hostID string) (*calendarapi.Service, error) {
	token, err := c.tokens.CalendarToken(ctx, hostID)
	if err != nil {
		return nil, err
	}
	client := c.config.Client(ctx, token)
	srv, err := calendarapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return srv, nil
}

func (c *GoogleClient) BusyIntervals(ctx context.Context, hostID string, from, to time.Time) ([]Interval, error) {
	srv, err := c.service(ctx, hostID)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Freebusy.Query(&calendarapi.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendarapi.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	var out []Interval
	for _, cal := range resp.Calendars {
		for _, busy := range cal.Busy {
			start, err := time.Parse(time.RFC3339, busy.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, busy.End)
			if err != nil {
				continue
			}
			out = append(out, Interval{Start: start.UTC(), End: end.UTC()})
		}
	}
	return out, nil
}

func (c *GoogleClient) CreateEvent(ctx context.Context, hostID string, ev Event) (string, error) {
	srv, err := c.service(ctx, hostID)
	if err != nil {
		return "", err
	}

	attendees := make([]*calendarapi.EventAttendee, 0, len(ev.Attendees))
	for _, email := range ev.Attendees {
		attendees = append(attendees, &calendarapi.EventAttendee{Email: email})
	}

	created, err := srv.Events.Insert("primary", &calendarapi.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendarapi.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendarapi.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
		Attendees:   attendees,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.Id, nil
}
