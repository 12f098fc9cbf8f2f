package watcher

import "errors"

type WatcherFromConfigOptions struct {
	RedisChannel string
	Buffer       int
}

// NewWatcherFromConfig builds the notifier named by the config. The default
// is the in-process memory watcher; redis mode broadcasts across instances
// over a pubsub channel.
func NewWatcherFromConfig[T any](cfg Config, opts WatcherFromConfigOptions) (Notifier[T], error) {
	switch cfg.Mode {
	case ModeRedis:
		if opts.RedisChannel == "" {
			return nil, errors.New("watcher: redis channel is required for redis mode")
		}

		return NewRedisWatcherFromConfig[T](cfg.Redis, RedisWatcherOptions{
			Channel: opts.RedisChannel,
			Buffer:  opts.Buffer,
		})
	default:
		return NewMemoryWatcher[T](MemoryWatcherOptions{Buffer: opts.Buffer}), nil
	}
}
