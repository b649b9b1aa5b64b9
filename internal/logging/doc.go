// Package logging configures the process-wide slog logger for archivesearch.
// Logs are JSON lines, written to a size-rotated file under the data
// directory and, except in stdio mode, mirrored to stderr.
package logging
