package ports

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key does not exist or expired.
var ErrKeyNotFound = errors.New("key not found")

// KVStore is the coordination substrate consumed by the lock manager and the
// admission controller: a key-value store with atomic conditional-set and
// expiry. Any backend offering those primitives satisfies the contract; the
// production adapter is Redis.
type KVStore interface {
	// SetNX sets key to value with a TTL only if the key does not exist.
	// Returns true when the set happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// CompareAndDelete removes key only while it still holds value, so a
	// lock holder never deletes a lock re-acquired by someone else after
	// its own TTL expired.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)

	// Incr atomically increments the counter at key and returns the new
	// value, creating it at 1 if absent.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Get returns the value at key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
}
