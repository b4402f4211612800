package broker

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/noteflow/noteflow/internal/ports"
)

var errBrokerClosed = errors.New("broker is closed")

// MemoryBroker is an in-process implementation of ports.Broker with the same
// observable semantics as the AMQP adapter: topic wildcard matching, per-queue
// FIFO, and redelivery of requeued messages. It backs tests and local mode
// where no RabbitMQ is available.
type MemoryBroker struct {
	mu       sync.Mutex
	topics   map[string]struct{}
	queues   map[string]*memoryQueue
	bindings map[string][]memoryBinding
	closed   bool
}

type memoryBinding struct {
	queue   string
	pattern string
}

type memoryQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	messages []ports.Delivery
	inflight int
	closed   bool
}

func newMemoryQueue() *memoryQueue {
	q := &memoryQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		topics:   make(map[string]struct{}),
		queues:   make(map[string]*memoryQueue),
		bindings: make(map[string][]memoryBinding),
	}
}

func (b *MemoryBroker) DeclareTopic(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errBrokerClosed
	}
	b.topics[name] = struct{}{}
	return nil
}

func (b *MemoryBroker) DeclareQueue(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errBrokerClosed
	}
	if _, ok := b.queues[name]; !ok {
		b.queues[name] = newMemoryQueue()
	}
	return nil
}

func (b *MemoryBroker) BindQueue(queue, topic, pattern string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errBrokerClosed
	}
	if _, ok := b.queues[queue]; !ok {
		return errors.New("queue not declared: " + queue)
	}
	if _, ok := b.topics[topic]; !ok {
		return errors.New("topic not declared: " + topic)
	}
	b.bindings[topic] = append(b.bindings[topic], memoryBinding{queue: queue, pattern: pattern})
	return nil
}

// Publish fans the message out to every queue whose binding pattern matches
// the routing key. Unroutable messages are silently dropped, matching a topic
// exchange with no matching binding.
func (b *MemoryBroker) Publish(ctx context.Context, topic, routingKey string, payload []byte, persistent bool) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errBrokerClosed
	}
	if _, ok := b.topics[topic]; !ok {
		b.mu.Unlock()
		return errors.New("topic not declared: " + topic)
	}
	var targets []*memoryQueue
	for _, binding := range b.bindings[topic] {
		if matchRoutingKey(binding.pattern, routingKey) {
			targets = append(targets, b.queues[binding.queue])
		}
	}
	b.mu.Unlock()

	body := make([]byte, len(payload))
	copy(body, payload)
	for _, q := range targets {
		q.mu.Lock()
		q.messages = append(q.messages, ports.Delivery{RoutingKey: routingKey, Body: body})
		q.cond.Signal()
		q.mu.Unlock()
	}
	return nil
}

// Consume starts a dispatcher goroutine for queue. Messages are handled one
// at a time; a Requeue verdict puts the message back at the head of the queue
// for immediate redelivery.
func (b *MemoryBroker) Consume(queue string, handler ports.Handler) (ports.Subscription, error) {
	b.mu.Lock()
	q, ok := b.queues[queue]
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, errBrokerClosed
	}
	if !ok {
		return nil, errors.New("queue not declared: " + queue)
	}

	sub := &memorySubscription{queue: q, done: make(chan struct{})}
	go sub.run(handler)
	return sub, nil
}

// Depth returns the number of messages queued or in flight. Test hook, not
// part of the Broker port.
func (b *MemoryBroker) Depth(queue string) int {
	b.mu.Lock()
	q, ok := b.queues[queue]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages) + q.inflight
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, q := range b.queues {
		q.mu.Lock()
		q.closed = true
		q.cond.Broadcast()
		q.mu.Unlock()
	}
	return nil
}

type memorySubscription struct {
	queue     *memoryQueue
	done      chan struct{}
	closeOnce sync.Once
}

func (s *memorySubscription) run(handler ports.Handler) {
	defer close(s.done)
	q := s.queue
	for {
		q.mu.Lock()
		for len(q.messages) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		msg := q.messages[0]
		q.messages = q.messages[1:]
		q.inflight = 1
		q.mu.Unlock()

		verdict := safeHandle(handler, msg)

		q.mu.Lock()
		q.inflight = 0
		if verdict == ports.Requeue {
			q.messages = append([]ports.Delivery{msg}, q.messages...)
		}
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func safeHandle(handler ports.Handler, d ports.Delivery) (verdict ports.Verdict) {
	defer func() {
		if recover() != nil {
			verdict = ports.Requeue
		}
	}()
	return handler(context.Background(), d)
}

// Close stops the dispatcher after any in-flight handler finishes.
func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.queue.mu.Lock()
		s.queue.closed = true
		s.queue.cond.Broadcast()
		s.queue.mu.Unlock()
	})
	<-s.done
	return nil
}

// matchRoutingKey implements AMQP topic matching: "*" matches exactly one
// dot-separated word, "#" matches zero or more words.
func matchRoutingKey(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, words []string) bool {
	if len(pattern) == 0 {
		return len(words) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(words); i++ {
			if matchWords(pattern[1:], words[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(words) > 0 && matchWords(pattern[1:], words[1:])
	default:
		return len(words) > 0 && words[0] == pattern[0] && matchWords(pattern[1:], words[1:])
	}
}
