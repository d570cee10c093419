// Package logging assembles structured slog loggers and formatting helpers used
// across titlecache.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so cache and seeder code can tag
// log lines with request, run and batch identifiers. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
package logging
