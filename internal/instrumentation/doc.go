// Package instrumentation wires OpenTelemetry metrics and tracing for
// calbridge.
//
// The Provider owns the meter and tracer providers and their exporters
// (Prometheus, OTLP or stdout). The Metrics recorder exposes typed record
// methods for the things the calendar core does: caller-facing operations,
// per-calendar page fetches, credential resolutions and token rotations.
// A zero-value Metrics is a safe no-op, so instrumentation can be disabled
// without sprinkling nil checks through the call sites.
package instrumentation
