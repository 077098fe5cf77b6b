package calendar

import (
	"log/slog"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/calbridge/calbridge/internal/logging"
)

// TimeWindow bounds an event query. A zero Min means "now"; a zero Max
// leaves the query open-ended. No ordering is enforced between the two; an
// inverted window simply yields no events.
type TimeWindow struct {
	Min time.Time
	Max time.Time
}

// EventTime is an instant plus the provider's optional timezone name.
// All-day events carry midnight of the date and no timezone.
type EventTime struct {
	Time     time.Time
	TimeZone string
}

// Event is the typed view of a provider event.
//
// CalendarID is not part of the provider's event shape: it is this core's
// own annotation recording which calendar the event was fetched from, so
// multi-calendar aggregates stay attributable downstream.
type Event struct {
	ID          string
	CalendarID  string
	Summary     string
	Description string
	Start       EventTime
	End         EventTime
	Attendees   []string
	Status      string
}

// EventDraft carries the fields for creating or updating an event. On
// update only the non-zero fields are sent, so omitted fields are left
// untouched by the provider.
type EventDraft struct {
	Summary     string
	Description string
	Start       EventTime
	End         EventTime
	Attendees   []string
}

// CalendarInfo describes one calendar visible to the credential.
type CalendarInfo struct {
	ID         string
	Summary    string
	Primary    bool
	AccessRole string // "owner", "writer", "reader", "freeBusyReader"
}

// toEvent converts a provider event and tags it with its source calendar.
func toEvent(event *calendar.Event, calendarID string, logger *slog.Logger) Event {
	if event == nil {
		return Event{CalendarID: calendarID}
	}

	out := Event{
		ID:          event.Id,
		CalendarID:  calendarID,
		Summary:     event.Summary,
		Description: event.Description,
		Status:      event.Status,
	}

	out.Start = toEventTime(event.Start, logger)
	out.End = toEventTime(event.End, logger)

	for _, att := range event.Attendees {
		out.Attendees = append(out.Attendees, att.Email)
	}

	return out
}

// toEventTime parses a provider event time. Timed events carry an RFC 3339
// DateTime; all-day events carry a plain Date. A value the provider sends in
// neither form is dropped to the zero time and logged, so lossy conversions
// stay observable.
func toEventTime(edt *calendar.EventDateTime, logger *slog.Logger) EventTime {
	if edt == nil {
		return EventTime{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	out := EventTime{TimeZone: edt.TimeZone}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			logger.Debug("dropping unparsable event time",
				slog.String("value", edt.DateTime),
				logging.Err(err))
			return out
		}
		out.Time = t
	} else if edt.Date != "" {
		t, err := time.Parse("2006-01-02", edt.Date)
		if err != nil {
			logger.Debug("dropping unparsable event date",
				slog.String("value", edt.Date),
				logging.Err(err))
			return out
		}
		out.Time = t
	}

	return out
}

// toProviderEventTime converts an EventTime for a mutation request.
// Returns nil for a zero EventTime so Patch leaves the field untouched.
func toProviderEventTime(et EventTime) *calendar.EventDateTime {
	if et.Time.IsZero() {
		return nil
	}
	return &calendar.EventDateTime{
		DateTime: et.Time.Format(time.RFC3339),
		TimeZone: et.TimeZone,
	}
}

// toProviderEvent builds the provider event payload for a draft, including
// only the fields the draft supplies.
func toProviderEvent(draft EventDraft) *calendar.Event {
	event := &calendar.Event{
		Summary:     draft.Summary,
		Description: draft.Description,
		Start:       toProviderEventTime(draft.Start),
		End:         toProviderEventTime(draft.End),
	}

	for _, email := range draft.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{
			Email: email,
		})
	}

	return event
}

// toCalendarInfo converts a provider calendar list entry.
func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	if entry == nil {
		return CalendarInfo{}
	}
	return CalendarInfo{
		ID:         entry.Id,
		Summary:    entry.Summary,
		Primary:    entry.Primary,
		AccessRole: entry.AccessRole,
	}
}
