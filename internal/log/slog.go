package log

import (
	"context"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AsSlog bridges the logger to the standard slog interface, for libraries
// that accept *slog.Logger.
func (l *Logger) AsSlog() *slog.Logger {
	return slog.New(&slogHandler{logger: l})
}

type slogHandler struct {
	logger *Logger
	attrs  []Field
	group  string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.zap.Core().Enabled(slogToZapLevel(level))
}

func (h *slogHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := make([]Field, 0, record.NumAttrs()+len(h.attrs))
	fields = append(fields, h.attrs...)

	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, h.attrToField(attr))
		return true
	})

	switch {
	case record.Level >= slog.LevelError:
		h.logger.Error(ctx, record.Message, fields...)
	case record.Level >= slog.LevelWarn:
		h.logger.Warn(ctx, record.Message, fields...)
	case record.Level >= slog.LevelInfo:
		h.logger.Info(ctx, record.Message, fields...)
	default:
		h.logger.Debug(ctx, record.Message, fields...)
	}

	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make([]Field, 0, len(h.attrs)+len(attrs))
	fields = append(fields, h.attrs...)

	for _, attr := range attrs {
		fields = append(fields, h.attrToField(attr))
	}

	return &slogHandler{logger: h.logger, attrs: fields, group: h.group}
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &slogHandler{logger: h.logger, attrs: h.attrs, group: group}
}

func (h *slogHandler) attrToField(attr slog.Attr) Field {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	return zap.Any(key, attr.Value.Any())
}

func slogToZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
