package lock

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/logger"
)

const keyPrefix = "lock:"

// Config bounds the acquisition retry budget. Each failed attempt waits
// RetryDelay plus up to RetryJitter before trying again, so callers racing
// for the same entity do not stampede the store in lockstep.
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
	RetryJitter time.Duration
}

// DefaultConfig mirrors the behavior expected around a note update: a short
// burst of retries, then give up and reject the mutation.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		RetryDelay:  50 * time.Millisecond,
		RetryJitter: 50 * time.Millisecond,
	}
}

// Manager implements ports.LockManager over a conditional-set key-value
// store. The lock is best effort: the TTL bounds the damage of a crashed
// holder by letting the key self-expire. A slow holder can in theory outlive
// its TTL while a second caller acquires the key; fencing tokens would close
// that window and are intentionally not implemented here.
type Manager struct {
	store  ports.KVStore
	config Config
	logger logger.Logger
}

// NewManager creates a lock manager on store.
func NewManager(store ports.KVStore, config Config, log logger.Logger) *Manager {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Manager{store: store, config: config, logger: log}
}

// Acquire obtains the lock for resourceKey or fails with ports.ErrLockTimeout
// after exhausting the retry budget. Context cancellation aborts the wait.
func (m *Manager) Acquire(ctx context.Context, resourceKey string, ttl time.Duration) (ports.Lock, error) {
	key := keyPrefix + resourceKey
	token := uuid.New().String()

	for attempt := 0; attempt < m.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := m.config.RetryDelay
			if m.config.RetryJitter > 0 {
				delay += time.Duration(rand.Int63n(int64(m.config.RetryJitter)))
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		acquired, err := m.store.SetNX(ctx, key, token, ttl)
		if err != nil {
			return nil, err
		}
		if acquired {
			return &handle{store: m.store, key: key, resource: resourceKey, token: token}, nil
		}
	}

	m.logger.Warn(ctx, "Lock acquisition timed out", map[string]interface{}{
		"resource": resourceKey,
		"attempts": m.config.MaxAttempts,
	})
	return nil, ports.ErrLockTimeout
}

type handle struct {
	store    ports.KVStore
	key      string
	resource string
	token    string
}

func (h *handle) Key() string {
	return h.resource
}

// Release deletes the lock only if this handle's token still owns it.
// Releasing after expiry is a no-op so cleanup paths never fail.
func (h *handle) Release(ctx context.Context) error {
	_, err := h.store.CompareAndDelete(ctx, h.key, h.token)
	return err
}
