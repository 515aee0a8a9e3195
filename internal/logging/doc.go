// Package logging builds the slog loggers used across pressline and the
// shared structured field vocabulary. Console output is for interactive
// runs; JSON output is for log shipping.
package logging
