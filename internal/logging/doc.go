// Package logging provides structured logging utilities for calbridge.
//
// It centralizes slog attribute naming so that credential resolution, page
// fetches and error classification log consistently, and it keeps PII and
// secrets out of log output: user identities are hashed for correlation and
// token values are reduced to a length indicator.
package logging
