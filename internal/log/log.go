package log

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap.Logger with context-aware hooks.
type Logger struct {
	zap    *zap.Logger
	config Config
	hooks  []Hook
}

// New builds a Logger from the given config. It is used as an fx constructor.
func New(config Config) (*Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder

	switch config.Format {
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer

	switch config.Output {
	case "file":
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSize,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAge,
			Compress:   config.File.Compress,
		})
	case "stderr":
		sink = zapcore.Lock(os.Stderr)
	default:
		sink = zapcore.Lock(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, parseLevel(config.Level))

	opts := []zap.Option{}
	if config.Debug {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	zl := zap.New(core, opts...)
	if config.Name != "" {
		zl = zl.With(zap.String("logger", config.Name))
	}

	return &Logger{zap: zl, config: config}, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// AddHook registers a hook that runs on every entry logged through this logger.
func (l *Logger) AddHook(hook Hook) {
	l.hooks = append(l.hooks, hook)
}

// With returns a child logger with the given fields attached.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zap: l.zap.With(fields...), config: l.config, hooks: l.hooks}
}

// Unwrap exposes the underlying zap logger.
func (l *Logger) Unwrap() *zap.Logger {
	return l.zap
}

func (l *Logger) apply(ctx context.Context, msg string, fields []Field) []Field {
	for _, hook := range l.hooks {
		fields = hook.Apply(ctx, msg, fields...)
	}

	return fields
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.zap.Debug(msg, l.apply(ctx, msg, fields)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.zap.Info(msg, l.apply(ctx, msg, fields)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.zap.Warn(msg, l.apply(ctx, msg, fields)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.zap.Error(msg, l.apply(ctx, msg, fields)...)
}

func (l *Logger) Sync() error {
	return l.zap.Sync()
}
