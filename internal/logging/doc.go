// Package logging assembles structured slog loggers and formatting helpers used
// across talkvault.
//
// It owns the console/JSON handlers, log file rotation, and context-aware
// helpers so stage code automatically tags log lines with video IDs, job IDs,
// and stage names. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
