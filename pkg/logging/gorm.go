package logging

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's query log through zap.
type GormLogger struct {
	Logger                    *zap.Logger
	Level                     gormlogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewGormLogger returns a GormLogger that warns on queries slower than 200ms.
func NewGormLogger(l *zap.Logger) *GormLogger {
	return &GormLogger{
		Logger:                    l.Named("gorm"),
		Level:                     gormlogger.Warn,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

// LogMode implements gormlogger.Interface.
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *g
	c.Level = level
	return &c
}

func (g *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if g.Level >= gormlogger.Info {
		g.Logger.Sugar().Infof(msg, data...)
	}
}

func (g *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if g.Level >= gormlogger.Warn {
		g.Logger.Sugar().Warnf(msg, data...)
	}
}

func (g *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if g.Level >= gormlogger.Error {
		g.Logger.Sugar().Errorf(msg, data...)
	}
}

// Trace logs failed and slow statements; everything else goes to debug.
func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && (!errors.Is(err, gormlogger.ErrRecordNotFound) || !g.IgnoreRecordNotFoundError):
		g.Logger.Error("query failed", append(fields, zap.Error(err))...)
	case g.SlowThreshold > 0 && elapsed > g.SlowThreshold:
		g.Logger.Warn("slow query", fields...)
	case g.Level >= gormlogger.Info:
		g.Logger.Debug("query", fields...)
	}
}
