// Package logging wires structured, leveled logging for the toolchain's
// long-running components (the editor service, the repair driver, the HTTP
// gateway), generalising the teacher's request-ID-tagged leveled logger
// (hub/api/logging.go) onto zerolog instead of a hand-rolled log.Printf
// wrapper.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey int

const requestIDKey ctxKey = iota

// New builds a zerolog.Logger at the given level ("debug"|"info"|"warn"|
// "error", case-insensitive, defaulting to info on an unrecognised value),
// writing either structured JSON (format == "json") or zerolog's
// human-readable console form (format == "console" or anything else).
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl := parseLevel(level)

	var out io.Writer = w
	if strings.ToLower(strings.TrimSpace(format)) != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRequestID returns a context carrying requestID, retrievable via
// RequestID, mirroring the teacher's request-ID-in-context convention.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID extracts the request ID stashed by WithRequestID, or "unknown"
// if none was set, matching the teacher's getRequestID fallback.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// FromContext returns logger with a request_id field populated from ctx.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	return logger.With().Str("request_id", RequestID(ctx)).Logger()
}

// Elapsed is a small helper for duration-field logging at call sites that
// time an operation (e.g. a repair-loop iteration or a gateway request).
func Elapsed(since time.Time) time.Duration {
	return time.Since(since)
}
