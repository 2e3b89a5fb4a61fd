package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

var (
	mu            sync.RWMutex
	defaultLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Init configures the process-wide logger. Format "console" produces
// human readable output, anything else emits JSON lines.
func Init(level, format string) zerolog.Logger {
	return InitWithWriter(level, format, os.Stdout)
}

func InitWithWriter(level, format string, out io.Writer) zerolog.Logger {
	zerolog.TimestampFieldName = "timestamp"

	w := out
	if strings.EqualFold(format, "console") {
		cw := zerolog.NewConsoleWriter()
		cw.Out = out
		cw.TimeFormat = time.DateTime
		w = cw
	}

	l := zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()

	mu.Lock()
	defaultLogger = l
	mu.Unlock()

	return l
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// WithContext stores l in ctx so that downstream code logs with the same
// request-scoped fields.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext, or the global one.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	return Get()
}
