package ports

import "context"

// Verdict is the consumer handler's decision for a delivered message.
type Verdict int

const (
	// Ack removes the message from the queue.
	Ack Verdict = iota
	// Requeue returns the message to the queue for redelivery.
	Requeue
)

// Delivery is one message handed to a consumer handler.
type Delivery struct {
	RoutingKey string
	Body       []byte
}

// Handler processes one delivery and decides its fate. Returning Requeue (or
// panicking, in the AMQP adapter) puts the message back on the queue; the
// broker guarantees at-least-once delivery, so handlers must be idempotent.
type Handler func(ctx context.Context, d Delivery) Verdict

// Subscription is a running consumer bound to a queue.
type Subscription interface {
	// Close stops consuming. An in-flight handler is allowed to finish and
	// its verdict is honored before Close returns.
	Close() error
}

// Broker is a durable publish/subscribe channel: one topic exchange, durable
// queues bound by routing-key pattern, at-least-once delivery. Instances are
// constructed explicitly and passed to the components that need them; there
// is no package-level connection.
type Broker interface {
	DeclareTopic(name string) error
	DeclareQueue(name string) error
	BindQueue(queue, topic, pattern string) error

	// Publish sends payload to the topic under routingKey. With persistent
	// set the message survives a broker restart once enqueued. Publishing
	// on a dropped connection fails loudly; retrying is the caller's call.
	Publish(ctx context.Context, topic, routingKey string, payload []byte, persistent bool) error

	// Consume delivers queue messages to handler one at a time.
	Consume(queue string, handler Handler) (Subscription, error)

	Close() error
}
