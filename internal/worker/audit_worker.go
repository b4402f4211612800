package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/events"
	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/logger"
)

// AuditQueue is the durable queue the audit consumer drains.
const AuditQueue = "audit_logs_queue"

// auditBinding subscribes the queue to every note lifecycle event.
const auditBinding = domain.EntityTypeNote + ".*"

// AuditWorker persists an immutable audit record for every valid lifecycle
// event. Delivery is at-least-once, so a redelivered event may produce a
// duplicate record; audit history is an append log and tolerates that rather
// than dropping events on the floor.
type AuditWorker struct {
	broker  ports.Broker
	repo    ports.AuditRepository
	logger  logger.Logger
	retries *retryTracker
	sub     ports.Subscription
}

// NewAuditWorker declares and binds the audit queue.
func NewAuditWorker(broker ports.Broker, repo ports.AuditRepository, log logger.Logger) (*AuditWorker, error) {
	if err := broker.DeclareTopic(events.Exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := broker.DeclareQueue(AuditQueue); err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := broker.BindQueue(AuditQueue, events.Exchange, auditBinding); err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	return &AuditWorker{
		broker:  broker,
		repo:    repo,
		logger:  log,
		retries: newRetryTracker(DefaultMaxDeliveryAttempts),
	}, nil
}

// Start begins consuming. It returns immediately; messages are handled on
// the broker's consumer goroutine until Stop.
func (w *AuditWorker) Start() error {
	sub, err := w.broker.Consume(AuditQueue, w.handle)
	if err != nil {
		return fmt.Errorf("failed to start audit worker: %w", err)
	}
	w.sub = sub
	w.logger.Info(context.Background(), "Audit worker started", map[string]interface{}{
		"queue":   AuditQueue,
		"binding": auditBinding,
	})
	return nil
}

// Stop stops consuming after any in-flight message is handled.
func (w *AuditWorker) Stop() error {
	if w.sub == nil {
		return nil
	}
	return w.sub.Close()
}

// handle implements the consumer state machine: validate, persist, ack.
// Malformed events are dropped with a warning because requeueing them would
// redeliver forever; persist failures requeue, up to a per-message cap so a
// poison message cannot pin the consumer.
func (w *AuditWorker) handle(ctx context.Context, d ports.Delivery) ports.Verdict {
	var event domain.DomainEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.logger.Warn(ctx, "Dropping undecodable audit event", map[string]interface{}{
			"routing_key": d.RoutingKey,
			"error":       err.Error(),
		})
		return ports.Ack
	}

	if err := event.Validate(); err != nil {
		w.logger.Warn(ctx, "Dropping invalid audit event", map[string]interface{}{
			"routing_key": d.RoutingKey,
			"entity_id":   event.EntityID,
			"error":       err.Error(),
		})
		return ports.Ack
	}

	record := domain.AuditRecordFromEvent(&event)
	if err := w.repo.Create(ctx, record); err != nil {
		verdict, parked := w.retries.failed(d)
		if parked {
			w.logger.Error(ctx, "Parking audit event after repeated persist failures", err, map[string]interface{}{
				"routing_key":  d.RoutingKey,
				"entity_id":    event.EntityID,
				"max_attempts": DefaultMaxDeliveryAttempts,
			})
		} else {
			w.logger.Error(ctx, "Failed to persist audit record, requeueing", err, map[string]interface{}{
				"routing_key": d.RoutingKey,
				"entity_id":   event.EntityID,
			})
		}
		return verdict
	}
	w.retries.succeeded(d)

	w.logger.Debug(ctx, "Audit record persisted", map[string]interface{}{
		"event_type": string(event.EventType),
		"entity_id":  event.EntityID,
	})
	return ports.Ack
}
