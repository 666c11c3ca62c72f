// Package observability provides the structured logging, Prometheus
// metrics, and OpenTelemetry tracing an orchestrator run is built on: one
// *slog.Logger per component, counters/histograms for loop steps and tool
// dispatch, and spans around each agent step and tool call. It mirrors the
// teacher's internal/observability package, scoped down to what this
// headless, single-process domain actually needs — no HTTP/webhook/DB
// metrics, no channel-routing log fields.
package observability
