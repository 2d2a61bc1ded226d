// Package logging assembles structured slog loggers and field helpers used
// across sodareplay.
//
// It owns the configurable console (charmbracelet/log) and JSON handlers,
// centralizes level and output plumbing, and exposes context-aware helpers so
// resolver and daemon code tag log lines with run IDs and correlation IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
