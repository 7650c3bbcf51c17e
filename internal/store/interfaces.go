package store

import (
	"context"
	"time"
)

// KV is the leasing store port. Values are opaque strings; every entry
// carries a TTL after which it reverts to absent.
type KV interface {
	// Get returns the value for key, and whether the key is present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put writes a value with the given TTL, replacing any existing entry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ListPrefix returns all live keys with the given prefix.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}
