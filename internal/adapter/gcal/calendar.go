package gcal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"toggl-calsync/internal/domain"
)

// Client implements ports.Calendar on top of the Google Calendar API.
type Client struct {
	svc        *calendar.Service
	calendarID string
	log        *slog.Logger
}

// NewClient builds the Calendar service and verifies the configured
// calendar is reachable. An unreachable calendar is a misconfiguration and
// fails construction rather than every later write.
func NewClient(ctx context.Context, calendarID string, log *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("gcal: calendar id is required")
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcal: create service: %w", err)
	}
	if _, err := svc.Calendars.Get(calendarID).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("gcal: calendar %q not accessible: %w", calendarID, err)
	}
	return &Client{svc: svc, calendarID: calendarID, log: log}, nil
}

func (c *Client) CreateEvent(ctx context.Context, title string, start, end time.Time) error {
	ev := &calendar.Event{
		Summary: title,
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	if _, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: insert event: %w", err)
	}
	return nil
}

// SearchEvents runs the calendar's free-text search over [from, to]. The
// returned order is the store's native enumeration order.
func (c *Client) SearchEvents(ctx context.Context, from, to time.Time, query string) ([]domain.CalendarEvent, error) {
	var out []domain.CalendarEvent
	pageToken := ""
	for {
		call := c.svc.Events.List(c.calendarID).
			Q(query).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true).
			MaxResults(250).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("gcal: list events: %w", err)
		}
		for _, item := range res.Items {
			ev, ok := toDomain(item)
			if !ok {
				c.log.Debug("gcal: skipping event without parseable times", slog.String("id", item.Id))
				continue
			}
			out = append(out, ev)
		}
		if res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

func (c *Client) UpdateEvent(ctx context.Context, eventID, title string, start, end time.Time) error {
	patch := &calendar.Event{
		Summary: title,
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	if _, err := c.svc.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: patch event %s: %w", eventID, err)
	}
	return nil
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: delete event %s: %w", eventID, err)
	}
	return nil
}

func toDomain(item *calendar.Event) (domain.CalendarEvent, bool) {
	start, ok := eventTime(item.Start)
	if !ok {
		return domain.CalendarEvent{}, false
	}
	end, ok := eventTime(item.End)
	if !ok {
		return domain.CalendarEvent{}, false
	}
	ev := domain.CalendarEvent{
		ID:    item.Id,
		Title: item.Summary,
		Start: start,
		End:   end,
	}
	if item.Updated != "" {
		if t, err := time.Parse(time.RFC3339, item.Updated); err == nil {
			ev.Updated = t
		}
	}
	return ev, true
}

func eventTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		return t, err == nil
	}
	if edt.Date != "" {
		t, err := time.Parse("2006-01-02", edt.Date)
		return t, err == nil
	}
	return time.Time{}, false
}
