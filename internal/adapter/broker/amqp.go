package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/logger"
)

// AMQPBroker implements ports.Broker on top of a RabbitMQ connection. Each
// broker instance owns its own connection; components receive the instance
// they should use instead of reaching for a shared global.
type AMQPBroker struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.Mutex // amqp channels are not safe for concurrent publish
	logger logger.Logger
}

// Dial connects to RabbitMQ and opens the channel used for declarations and
// publishing. Consumers get their own channel per subscription.
func Dial(url string, log logger.Logger) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &AMQPBroker{conn: conn, ch: ch, logger: log}, nil
}

// DeclareTopic declares a durable topic exchange.
func (b *AMQPBroker) DeclareTopic(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	return nil
}

// DeclareQueue declares a durable queue.
func (b *AMQPBroker) DeclareQueue(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// BindQueue binds queue to topic for routing keys matching pattern.
func (b *AMQPBroker) BindQueue(queue, topic, pattern string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ch.QueueBind(queue, pattern, topic, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s (%s): %w", queue, topic, pattern, err)
	}
	return nil
}

// Publish sends payload under routingKey. A closed connection surfaces as an
// error here; the broker does not retry on the caller's behalf.
func (b *AMQPBroker) Publish(ctx context.Context, topic, routingKey string, payload []byte, persistent bool) error {
	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.ch.PublishWithContext(ctx, topic, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s (%s): %w", topic, routingKey, err)
	}
	return nil
}

// Consume delivers messages from queue to handler one at a time (prefetch 1).
// Ack happens strictly after the handler returns, so a crash mid-handler
// leaves the message unacked and it is redelivered.
func (b *AMQPBroker) Consume(queue string, handler ports.Handler) (ports.Subscription, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume from %s: %w", queue, err)
	}

	sub := &amqpSubscription{ch: ch, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		for d := range deliveries {
			verdict := b.handle(handler, d)
			if verdict == ports.Ack {
				if err := d.Ack(false); err != nil {
					b.logger.Error(context.Background(), "Failed to ack message", err, map[string]interface{}{
						"queue":       queue,
						"routing_key": d.RoutingKey,
					})
				}
				continue
			}
			// Requeue exactly once per delivery attempt; the broker
			// redelivers it immediately.
			if err := d.Nack(false, true); err != nil {
				b.logger.Error(context.Background(), "Failed to nack message", err, map[string]interface{}{
					"queue":       queue,
					"routing_key": d.RoutingKey,
				})
			}
		}
	}()

	return sub, nil
}

// handle runs the handler with panic containment: a panicking handler must
// requeue its message, never lose it or kill the consumer loop.
func (b *AMQPBroker) handle(handler ports.Handler, d amqp.Delivery) (verdict ports.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(context.Background(), "Panic in message handler", fmt.Errorf("%v", r), map[string]interface{}{
				"routing_key": d.RoutingKey,
			})
			verdict = ports.Requeue
		}
	}()
	return handler(context.Background(), ports.Delivery{RoutingKey: d.RoutingKey, Body: d.Body})
}

// Close closes the publishing channel and the connection.
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ch.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}

type amqpSubscription struct {
	ch   *amqp.Channel
	done chan struct{}
}

// Close cancels the consumer and waits for the in-flight handler to finish.
func (s *amqpSubscription) Close() error {
	err := s.ch.Close()
	<-s.done
	return err
}
