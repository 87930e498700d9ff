// Package telemetry sets up OpenTelemetry tracing for the relay.
//
// Spans are written by the stdout exporter, which suits a single process
// whose logs are shipped elsewhere. When telemetry is disabled the global
// no-op provider stays in place and instrumented clients cost almost nothing.
package telemetry
