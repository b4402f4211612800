package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when the retry budget for an acquisition is
// exhausted without obtaining the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Lock is a held mutual-exclusion handle. Release must run on every exit path
// of the critical section, typically via defer.
type Lock interface {
	// Release frees the lock if this handle still owns it. Releasing an
	// expired handle is a no-op, not an error.
	Release(ctx context.Context) error

	// Key returns the resource key the lock guards.
	Key() string
}

// LockManager provides mutual exclusion per resource key across process
// instances. The TTL bounds how long a crashed holder can block others: the
// lock self-expires, trading perfect exclusion for liveness.
type LockManager interface {
	Acquire(ctx context.Context, resourceKey string, ttl time.Duration) (Lock, error)
}
