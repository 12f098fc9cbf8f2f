package xcache

import (
	"time"

	"github.com/eko/gocache/lib/v4/store"
)

// Option forwards gocache store options through the Cache interface.
type Option = store.Option

// WithExpiration sets a per-entry TTL.
func WithExpiration(expiration time.Duration) Option {
	return store.WithExpiration(expiration)
}
