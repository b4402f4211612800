package worker

import (
	"hash/fnv"
	"sync"

	"github.com/noteflow/noteflow/internal/ports"
)

// DefaultMaxDeliveryAttempts bounds how often a failing message is requeued
// before it is parked. Requeue-forever turns one poison message into a spinning
// consumer; a cap trades completeness for liveness.
const DefaultMaxDeliveryAttempts = 5

// retryTracker counts failed deliveries per message fingerprint. Counts live
// in process memory: a restart resets them, which only means a parked-worthy
// message gets a fresh budget, never that a message is lost.
type retryTracker struct {
	mu       sync.Mutex
	max      int
	attempts map[uint64]int
}

func newRetryTracker(max int) *retryTracker {
	if max <= 0 {
		max = DefaultMaxDeliveryAttempts
	}
	return &retryTracker{max: max, attempts: make(map[uint64]int)}
}

// failed records one failed handling attempt and returns the verdict: Requeue
// while budget remains, Ack once the message is parked.
func (r *retryTracker) failed(d ports.Delivery) (ports.Verdict, bool) {
	key := fingerprint(d)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[key]++
	if r.attempts[key] >= r.max {
		delete(r.attempts, key)
		return ports.Ack, true
	}
	return ports.Requeue, false
}

// succeeded clears the failure count for a message that finally went through.
func (r *retryTracker) succeeded(d ports.Delivery) {
	key := fingerprint(d)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, key)
}

func fingerprint(d ports.Delivery) uint64 {
	h := fnv.New64a()
	h.Write([]byte(d.RoutingKey))
	h.Write([]byte{0})
	h.Write(d.Body)
	return h.Sum64()
}
