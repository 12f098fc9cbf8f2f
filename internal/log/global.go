package log

import (
	"context"
	"sync"
)

var (
	globalMu     sync.RWMutex
	globalLogger = mustNew(Config{Level: "info", Format: "json", Output: "stdout"})
)

func mustNew(config Config) *Logger {
	logger, err := New(config)
	if err != nil {
		panic(err)
	}

	return logger
}

// SetGlobalConfig rebuilds the global logger from the given config.
// Hooks registered on the previous global logger are carried over.
func SetGlobalConfig(config Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	logger := mustNew(config)
	logger.hooks = globalLogger.hooks
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	return globalLogger
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Error(ctx, msg, fields...)
}
