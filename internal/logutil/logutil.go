// Package logutil provides nil-safe logger helpers.
package logutil

import (
	"io"
	"log/slog"
	"strings"
)

// noop is a package-level discard logger, created once.
var noop = slog.New(slog.NewTextHandler(io.Discard, nil))

// Noop returns a logger that discards all output.
func Noop() *slog.Logger { return noop }

// NoopIfNil returns l when non-nil, otherwise a discard logger.
// Intended as the first line in constructors that accept *slog.Logger.
func NoopIfNil(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return noop
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return slog.LevelDebug - 4 // slog has no trace, use debug-4
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactBearer keeps the scheme and the last four characters of a bearer value.
func RedactBearer(v string) string {
	token, ok := strings.CutPrefix(v, "Bearer ")
	if !ok {
		if v == "" {
			return ""
		}
		return "[redacted]"
	}
	if len(token) <= 4 {
		return "Bearer ****"
	}
	return "Bearer ****" + token[len(token)-4:]
}
