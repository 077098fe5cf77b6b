package calendar

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/calbridge/calbridge/internal/instrumentation"
	"github.com/calbridge/calbridge/internal/logging"
)

// Service exposes the caller-facing calendar operations. The transport
// layer invokes these with a user identity it has already authenticated;
// every operation resolves credentials fresh, so nothing is cached across
// calls.
type Service struct {
	resolver *Resolver
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	tracer   trace.Tracer
}

// NewService creates the service and hands the metrics recorder down to the
// resolver so resolutions and token rotations are counted too.
func NewService(resolver *Resolver, logger *slog.Logger, metrics *instrumentation.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	resolver.SetMetrics(metrics)

	return &Service{
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("calbridge/calendar"),
	}
}

// ListCalendars lists every calendar the user's credential can see.
func (s *Service) ListCalendars(ctx context.Context, userID string) ([]CalendarInfo, error) {
	var infos []CalendarInfo
	err := s.run(ctx, "list_calendars", userID, func(ctx context.Context, client *Client) error {
		var err error
		infos, err = client.ListCalendars(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// GetEvents aggregates events across calendars within the window.
//
// When calendarIDs are given they are queried in exactly that order;
// otherwise every calendar from ListCalendars is queried in enumerator
// order. The result is the concatenation of the per-calendar lists:
// calendar-major, start-time-minor. It is deliberately not re-sorted
// globally; callers needing one chronological stream sort it themselves.
//
// Aggregation is all-or-nothing: the first calendar that fails aborts the
// whole request and no partial results are returned.
func (s *Service) GetEvents(ctx context.Context, userID string, window TimeWindow, calendarIDs ...string) ([]Event, error) {
	var events []Event
	err := s.run(ctx, "get_events", userID, func(ctx context.Context, client *Client) error {
		ids := calendarIDs
		if len(ids) == 0 {
			infos, err := client.ListCalendars(ctx)
			if err != nil {
				return err
			}
			for _, info := range infos {
				ids = append(ids, info.ID)
			}
		}

		for _, id := range ids {
			fetched, err := client.ListEvents(ctx, id, window)
			if err != nil {
				return err
			}
			events = append(events, fetched...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CreateEvent creates an event on the user's primary calendar.
func (s *Service) CreateEvent(ctx context.Context, userID string, draft EventDraft) (*Event, error) {
	var event *Event
	err := s.run(ctx, "create_event", userID, func(ctx context.Context, client *Client) error {
		var err error
		event, err = client.CreateEvent(ctx, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// UpdateEvent patches an event on the user's primary calendar; only the
// supplied draft fields change.
func (s *Service) UpdateEvent(ctx context.Context, userID, eventID string, draft EventDraft) (*Event, error) {
	var event *Event
	err := s.run(ctx, "update_event", userID, func(ctx context.Context, client *Client) error {
		var err error
		event, err = client.UpdateEvent(ctx, eventID, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// DeleteEvent deletes an event from the user's primary calendar.
func (s *Service) DeleteEvent(ctx context.Context, userID, eventID string) error {
	return s.run(ctx, "delete_event", userID, func(ctx context.Context, client *Client) error {
		return client.DeleteEvent(ctx, eventID)
	})
}

// run resolves credentials, executes the operation, and records the
// outcome: one span, one metric sample, one classified log line.
func (s *Service) run(ctx context.Context, op, userID string, fn func(ctx context.Context, client *Client) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "calendar."+op)
	defer span.End()

	log := s.logger.With(logging.Operation(op), logging.UserHash(userID))

	client, err := s.resolver.Resolve(ctx, userID)
	if err == nil {
		err = fn(ctx, client)
	}

	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		s.metrics.RecordOperation(ctx, op, logging.StatusError, duration)
		log.Warn("operation failed",
			slog.String(logging.KeyKind, string(KindOf(err))),
			logging.Err(err),
			logging.Duration(duration))
		return err
	}

	s.metrics.RecordOperation(ctx, op, logging.StatusSuccess, duration)
	log.Info("operation completed",
		logging.Status(logging.StatusSuccess),
		logging.Duration(duration))
	return nil
}
