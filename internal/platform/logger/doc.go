// Package logger provides structured logging for the application using the
// standard library's log/slog package. Loggers travel through request and job
// contexts so that trace and job identifiers appear on every entry.
package logger
