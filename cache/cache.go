// Package cache stores assembled event lists. Keys are opaque strings built
// with Key; values are the serialized lists. Invalidation is by namespace:
// Flush drops every entry at once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Store is a concurrent-safe key/value cache.
type Store interface {
	// Get returns the value under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Flush invalidates every key in the store's namespace.
	Flush(ctx context.Context) error
}

// Key hashes the JSON form of parts into a key under prefix. Maps are
// serialized with sorted keys, so equal inputs always give equal keys.
func Key(prefix string, parts ...any) (string, error) {
	hasher := sha256.New()
	enc := json.NewEncoder(hasher)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("encode cache key: %w", err)
		}
	}
	return fmt.Sprintf("%s%x", prefix, hasher.Sum(nil)), nil
}
