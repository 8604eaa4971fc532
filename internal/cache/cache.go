// Package cache provides an optional read-through cache for the redirect
// path. A cache miss or failure is never fatal; callers fall back to the
// store.
package cache

import (
	"context"
	"time"
)

// Cache stores short code to target URL mappings.
type Cache interface {
	// Get returns the cached target URL for key, or "" if the key is
	// not cached. Absence is not an error.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
