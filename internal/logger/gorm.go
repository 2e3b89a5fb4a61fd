package logger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger forwards gorm's SQL tracing to zerolog.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(level gormlogger.LogLevel) *GormLogger {
	return &GormLogger{level: level, slowThreshold: 200 * time.Millisecond}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		l := FromContext(ctx)
		l.Info().Msgf(msg, args...)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		l := FromContext(ctx)
		l.Warn().Msgf(msg, args...)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		l := FromContext(ctx)
		l.Error().Msgf(msg, args...)
	}
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	l := FromContext(ctx)

	var event *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		event = l.Error().Err(err)
	case elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		event = l.Warn().Bool("slow", true)
	case g.level >= gormlogger.Info:
		event = l.Debug()
	default:
		return
	}

	sql, rows := fc()
	event.
		Str("sql", sql).
		Int64("rows", rows).
		Dur("elapsed", elapsed).
		Msg("gorm query")
}
