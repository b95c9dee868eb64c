// Package cache provides the key-value store used for short-lived counters.
package cache

import (
	"context"
	"time"
)

// Store is a string key-value store with optional per-key expiry.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key. ttl <= 0 keeps the value without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
