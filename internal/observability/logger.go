// Package observability owns the process-wide structured logger.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type ctxKey string

const (
	ctxKeyRequestID   ctxKey = "request_id"
	ctxKeyParticipant ctxKey = "participant"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Setup replaces the global logger with a JSON logger writing to w at level.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	logger.Store(l)
	slog.SetDefault(l)
	return l
}

func Logger() *slog.Logger {
	return logger.Load()
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return Logger().With(kv...)
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// WithParticipant stores the chat participant in the context.
func WithParticipant(ctx context.Context, participant string) context.Context {
	return context.WithValue(ctx, ctxKeyParticipant, participant)
}

// LoggerFromContext adds request_id and participant if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if reqID, _ := ctx.Value(ctxKeyRequestID).(string); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if p, _ := ctx.Value(ctxKeyParticipant).(string); p != "" {
		l = l.With("participant", p)
	}
	return l
}
