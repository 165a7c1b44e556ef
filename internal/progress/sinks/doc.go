// Package sinks provides the Sink implementations fed by the progress hub:
// structured logs, Prometheus metrics, the persistent attempt log, and
// outbound operator alerts.
package sinks
