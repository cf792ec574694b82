// Package logging configures the logrus standard logger and carries request
// scoped fields through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Setup configures the standard logger.
//
// Level values: "debug", "info", "warn", "error" (empty means "info").
// Format values: "text", "json" (empty means "text").
//
// A nil out leaves the logger's output unchanged.
func Setup(level, format string, out io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	f, err := NewFormatter(format)
	if err != nil {
		return err
	}

	std := logrus.StandardLogger()
	std.SetLevel(lvl)
	std.SetFormatter(f)
	if out != nil {
		std.SetOutput(out)
	}
	return nil
}

// ParseLevel converts a level name to a logrus.Level.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level %q; want debug, info, warn or error", level)
	}
}

// NewFormatter returns the formatter for a format name.
func NewFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return &logrus.TextFormatter{FullTimestamp: true}, nil
	case "json":
		return &logrus.JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q; want text or json", format)
	}
}

// FromContext returns base enriched with the chi request id found in ctx, if
// any. A nil base means the standard logger.
func FromContext(ctx context.Context, base logrus.FieldLogger) logrus.FieldLogger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return base.WithField("request_id", reqID)
	}
	return base
}
