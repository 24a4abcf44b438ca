// Package logging assembles structured slog loggers and formatting helpers
// used across tabcap components.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers plus a no-op logger for tests and
// wiring code that cannot fail. Component loggers tag every line with the
// emitting context (coordinator, capture, popup, bridge) so interleaved
// output from the actors stays readable.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape as the rest of the system.
package logging
