package store

import (
	"context"
	"errors"
)

var ErrStoreUnavailable = errors.New("state store unavailable")

// KVStore is the local key-value store behind persisted catalog state,
// last-viewed products and cart fallback snapshots.
type KVStore interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value, replacing any previous one.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
