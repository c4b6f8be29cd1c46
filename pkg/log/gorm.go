package log

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM statements through the request logger found in the
// statement context, falling back to the global logger.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger creates a GORM logger. level is one of "silent", "error",
// "warn" or "info"; statements slower than slowThreshold are logged as warnings.
func NewGormLogger(level string, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		level:         parseGormLevel(level),
		slowThreshold: slowThreshold,
	}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		l := Ctx(ctx)
		l.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		l := Ctx(ctx)
		l.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		l := Ctx(ctx)
		l.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	l := Ctx(ctx)

	var evt *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		evt = l.Error().Err(err)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		evt = l.Warn().Bool("slow", true)
	case g.level >= gormlogger.Info:
		evt = l.Debug()
	default:
		return
	}

	sql, rows := fc()
	evt.Str(FieldSQL, sql).
		Int64(FieldRows, rows).
		Float64(FieldLatency, float64(elapsed.Microseconds())/1000).
		Msg("gorm query")
}

func parseGormLevel(s string) gormlogger.LogLevel {
	switch s {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
