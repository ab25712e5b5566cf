package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/masq"
)

type Format int

const (
	FormatConsole Format = iota + 1
	FormatJSON
)

var (
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	mu            sync.RWMutex
)

// Default returns the process-wide logger
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger
func SetDefault(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

type ctxLoggerKey struct{}

// With returns a context carrying the logger
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// From returns the logger stored in ctx, or Default() if none
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}

// New builds a logger writing to w. Fields tagged `masq:"secret"` and
// well-known credential field names are redacted.
func New(w io.Writer, level slog.Level, format Format, withSource bool) *slog.Logger {
	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("APIKey"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("DSN"),
	)

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   withSource,
			Level:       level,
			ReplaceAttr: filter,
		})
	default:
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(filter),
			clog.WithSource(withSource),
			clog.WithColor(true),
		)
	}

	return slog.New(handler)
}
