package logger

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/activeobjects/utils"
)

type slogLogger struct {
	Logger *slog.Logger
	Config
}

// NewSlogLogger creates a logger writing to a log/slog handler
func NewSlogLogger(logger *slog.Logger, config Config) Interface {
	return &slogLogger{Logger: logger, Config: config}
}

func (l *slogLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *slogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.log(ctx, slog.LevelInfo, msg, slog.Any("data", data))
	}
}

func (l *slogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.log(ctx, slog.LevelWarn, msg, slog.Any("data", data))
	}
}

func (l *slogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.log(ctx, slog.LevelError, msg, slog.Any("data", data))
	}
}

func (l *slogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	e, ok := newTraceEvent(l.Config, begin, fc, err)
	if !ok {
		return
	}

	fields := []slog.Attr{
		slog.Float64("duration_ms", e.Millis()),
		slog.String("sql", e.SQL),
	}
	if e.Rows != -1 {
		fields = append(fields, slog.Int64("rows", e.Rows))
	}

	level := slog.LevelInfo
	switch e.Kind {
	case TraceFailed:
		level = slog.LevelError
		fields = append(fields, slog.String("error", err.Error()))
	case TraceSlow:
		level = slog.LevelWarn
	}
	l.log(ctx, level, e.Kind.String(), slog.Attr{Key: "trace", Value: slog.GroupValue(fields...)})
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}

	if !l.Logger.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(time.Now(), level, msg, utils.CallerFrame().PC)
	r.Add(args...)
	_ = l.Logger.Handler().Handle(ctx, r)
}

func (l *slogLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	if l.ParameterizedQueries {
		return sql, nil
	}
	return sql, params
}
