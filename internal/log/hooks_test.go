package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type hookKey struct{}

func hookFields(ctx context.Context, msg string, fields ...Field) []Field {
	if ctx == nil {
		return fields
	}

	if v, ok := ctx.Value(hookKey{}).(string); ok {
		fields = append(fields, String("hooked", v))
	}

	return fields
}

func TestHookFunc(t *testing.T) {
	hook := HookFunc(hookFields)

	t.Run("with value in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), hookKey{}, "yes")
		fields := hook.Apply(ctx, "test message")
		assert.Len(t, fields, 1)
		assert.Equal(t, "hooked", fields[0].Key)
		assert.Equal(t, "yes", fields[0].String)
	})

	t.Run("without value in context", func(t *testing.T) {
		fields := hook.Apply(context.Background(), "test message")
		assert.Len(t, fields, 0)
	})

	t.Run("preserves existing fields", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), hookKey{}, "yes")
		fields := hook.Apply(ctx, "test message", Int("n", 1))
		assert.Len(t, fields, 2)
		assert.Equal(t, "n", fields[0].Key)
		assert.Equal(t, "hooked", fields[1].Key)
	})
}

func TestLoggerHooks(t *testing.T) {
	logger, err := New(Config{Level: "debug", Format: "json", Output: "stdout"})
	assert.NoError(t, err)

	logger.AddHook(HookFunc(hookFields))

	ctx := context.WithValue(context.Background(), hookKey{}, "yes")
	fields := logger.apply(ctx, "msg", []Field{Int("n", 1)})
	assert.Len(t, fields, 2)
}
