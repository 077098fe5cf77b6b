// Package server provides the operational HTTP surface of calbridge.
//
// The only endpoint family served here is the metrics listener: Prometheus
// metrics and a liveness probe on a dedicated port, isolated from any
// user-facing traffic.
package server
