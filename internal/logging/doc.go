// Package logging provides slog construction and shared structured-field
// conventions for the daemon, CLI, and pipeline stages.
package logging
