// Package watcher provides a best-effort broadcast stream used for reload
// signals. Delivery is not durable: slow or disconnected subscribers may miss
// events, which is acceptable because every event means "re-read the source
// of truth", not "apply this delta".
package watcher

import "context"

// Watcher is the subscribe side of the stream.
type Watcher[T any] interface {
	// Watch subscribes and returns the event channel plus a stop function.
	// The stop function must be called exactly once; it releases the
	// subscription and closes the channel.
	Watch() (<-chan T, func())
}

// Notifier is a Watcher that can also publish. The publisher broadcasts after
// mutating the source of truth; subscribers react by reloading from it.
type Notifier[T any] interface {
	Watcher[T]

	// Notify broadcasts the value to all current subscribers.
	Notify(ctx context.Context, v T) error
}
