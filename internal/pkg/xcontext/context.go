// Package xcontext provides context helpers for work that must outlive the
// request that started it.
package xcontext

import (
	"context"
	"time"
)

// DetachWithTimeout returns a context that keeps the values of ctx but not
// its cancellation, bounded by its own timeout. Use it for background work
// triggered by a request, such as trace retention, where the caller's
// disconnect must not cancel the work.
func DetachWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
