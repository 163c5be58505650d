// Package logging configures log/slog and derives request scoped loggers
// carrying the chi request id and the id of the table view being served.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const viewIDKey ctxKey = iota

// Setup installs a stdout logger as the slog default. Unknown levels mean
// info and any format other than "json" means text.
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. The CLI uses it to log to stderr while
// stdout carries command output.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithViewID returns a context carrying the id of a mounted table view.
func WithViewID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, viewIDKey, id)
}

// ViewID returns the view id stored in ctx, if any.
func ViewID(ctx context.Context) string {
	id, _ := ctx.Value(viewIDKey).(string)
	return id
}

// FromContext returns the default logger with request_id and view_id
// attached when ctx carries them.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if viewID := ViewID(ctx); viewID != "" {
		logger = logger.With("view_id", viewID)
	}
	return logger
}

// WithFields is FromContext plus extra attributes, e.g. the export job id.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
