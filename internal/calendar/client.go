package calendar

import (
	"context"
	"log/slog"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/calbridge/calbridge/internal/instrumentation"
	"github.com/calbridge/calbridge/internal/logging"
)

const (
	// eventPageSize is the number of events requested per page.
	eventPageSize = 250

	// primaryCalendarID is the provider alias for the account's primary
	// calendar; all mutations target it.
	primaryCalendarID = "primary"
)

// Client is an authenticated handle onto one user's calendar data, produced
// by Resolver.Resolve. It wraps the Google Calendar service and funnels
// every remote failure through Classify.
type Client struct {
	svc     *calendar.Service
	userID  string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// UserID returns the user identity this client is bound to.
func (c *Client) UserID() string {
	return c.userID
}

// ListCalendars lists all calendars visible to the credential, following
// list pagination until exhausted. An account with zero calendars yields an
// empty slice, not an error.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	var infos []CalendarInfo

	err := c.svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, entry := range page.Items {
			infos = append(infos, toCalendarInfo(entry))
		}
		return nil
	})
	if err != nil {
		return nil, Classify(err)
	}

	return infos, nil
}

// ListEvents fetches every event of one calendar within the window,
// draining pagination completely. Recurring series are expanded into single
// instances and ordered by start time by the provider; each event is tagged
// with the calendar it came from.
func (c *Client) ListEvents(ctx context.Context, calendarID string, window TimeWindow) ([]Event, error) {
	timeMin := window.Min
	if timeMin.IsZero() {
		timeMin = time.Now()
	}

	call := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(eventPageSize)

	if !window.Max.IsZero() {
		call = call.TimeMax(window.Max.Format(time.RFC3339))
	}

	var events []Event
	pages := 0

	err := call.Pages(ctx, func(page *calendar.Events) error {
		pages++
		c.metrics.RecordEventPage(ctx, calendarID, len(page.Items))
		c.logger.Debug("fetched event page",
			logging.Calendar(calendarID),
			slog.Int("page", pages),
			slog.Int("items", len(page.Items)))

		for _, item := range page.Items {
			events = append(events, toEvent(item, calendarID, c.logger))
		}
		return nil
	})
	if err != nil {
		return nil, Classify(err)
	}

	return events, nil
}

// CreateEvent creates a new event on the primary calendar.
func (c *Client) CreateEvent(ctx context.Context, draft EventDraft) (*Event, error) {
	created, err := c.svc.Events.Insert(primaryCalendarID, toProviderEvent(draft)).
		Context(ctx).Do()
	if err != nil {
		return nil, Classify(err)
	}

	event := toEvent(created, primaryCalendarID, c.logger)
	return &event, nil
}

// UpdateEvent patches an existing event on the primary calendar. Only the
// fields supplied in the draft are sent; the provider leaves the rest
// untouched.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, draft EventDraft) (*Event, error) {
	updated, err := c.svc.Events.Patch(primaryCalendarID, eventID, toProviderEvent(draft)).
		Context(ctx).Do()
	if err != nil {
		return nil, Classify(err)
	}

	event := toEvent(updated, primaryCalendarID, c.logger)
	return &event, nil
}

// DeleteEvent deletes an event from the primary calendar. A second delete
// of the same event surfaces the provider's not-found error; callers may
// treat that as already satisfied.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(primaryCalendarID, eventID).Context(ctx).Do(); err != nil {
		return Classify(err)
	}
	return nil
}
