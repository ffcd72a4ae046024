package store

import (
	"context"
	"encoding/json"
	"time"
)

// KeyValueStore persists small JSON documents by key.
// The staff notification registry is the main consumer.
type KeyValueStore interface {
	// Get returns the raw JSON stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Put creates or replaces the value stored under key.
	Put(ctx context.Context, key string, value json.RawMessage) error
}

// UpdateFunc computes the new value from the current one. current is nil when the key
// is absent. Returning a nil value leaves the stored value unchanged.
type UpdateFunc func(current json.RawMessage) (json.RawMessage, error)

// Updater is implemented by stores that apply a read-modify-write atomically,
// across every process sharing the store.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Cache is a short-lived byte cache with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
