package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrOperation = "operation"
	attrStatus    = "status"
	attrResult    = "result"
	attrCalendar  = "calendar"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a no-op recorder.
type Metrics struct {
	// Caller-facing calendar operations
	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram

	// Event aggregation
	eventPagesTotal    metric.Int64Counter
	eventsFetchedTotal metric.Int64Counter

	// Credential lifecycle
	credentialResolutionsTotal metric.Int64Counter
	tokenRotationsTotal        metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
// The detailedLabels parameter controls whether high-cardinality labels
// (per-calendar identifiers) are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.calendarOperationsTotal, err = meter.Int64Counter(
		"calendar_operations_total",
		metric.WithDescription("Total number of caller-facing calendar operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_operations_total counter: %w", err)
	}

	m.calendarOperationDuration, err = meter.Float64Histogram(
		"calendar_operation_duration_seconds",
		metric.WithDescription("Caller-facing calendar operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_operation_duration_seconds histogram: %w", err)
	}

	m.eventPagesTotal, err = meter.Int64Counter(
		"calendar_event_pages_total",
		metric.WithDescription("Total number of event pages fetched from the provider"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_event_pages_total counter: %w", err)
	}

	m.eventsFetchedTotal, err = meter.Int64Counter(
		"calendar_events_fetched_total",
		metric.WithDescription("Total number of events fetched from the provider"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_events_fetched_total counter: %w", err)
	}

	m.credentialResolutionsTotal, err = meter.Int64Counter(
		"credential_resolutions_total",
		metric.WithDescription("Total number of credential resolutions"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_resolutions_total counter: %w", err)
	}

	m.tokenRotationsTotal, err = meter.Int64Counter(
		"oauth_token_rotations_total",
		metric.WithDescription("Total number of OAuth token rotation persistence attempts"),
		metric.WithUnit("{rotation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_rotations_total counter: %w", err)
	}

	return m, nil
}

// RecordOperation records a caller-facing calendar operation with its
// status ("success" or "error") and duration.
func (m *Metrics) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil || m.calendarOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.calendarOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEventPage records one fetched event page and the number of events on
// it. The calendar identifier is only attached when detailed labels are
// enabled; calendar IDs are unbounded and would explode cardinality.
func (m *Metrics) RecordEventPage(ctx context.Context, calendarID string, events int) {
	if m == nil || m.eventPagesTotal == nil || m.eventsFetchedTotal == nil {
		return // Instrumentation not initialized
	}

	var attrs []attribute.KeyValue
	if m.detailedLabels {
		attrs = append(attrs, attribute.String(attrCalendar, calendarID))
	}

	m.eventPagesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.eventsFetchedTotal.Add(ctx, int64(events), metric.WithAttributes(attrs...))
}

// RecordCredentialResolution records a credential resolution attempt.
// Result should be one of: "success", "error".
func (m *Metrics) RecordCredentialResolution(ctx context.Context, result string) {
	if m == nil || m.credentialResolutionsTotal == nil {
		return // Instrumentation not initialized
	}

	m.credentialResolutionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordTokenRotation records a token rotation persistence attempt.
// Result should be one of: "success", "error".
func (m *Metrics) RecordTokenRotation(ctx context.Context, result string) {
	if m == nil || m.tokenRotationsTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenRotationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}
