package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/logger"
)

// Exchange is the topic exchange all note lifecycle events flow through.
const Exchange = "notes.events"

// Publisher serializes domain events and hands them to the broker. It is
// invoked only after the corresponding primary-store write committed, so a
// rolled-back mutation never produces an event. Publish failures surface to
// the caller; the publisher never retries on its own.
type Publisher struct {
	broker ports.Broker
	logger logger.Logger
}

// NewPublisher declares the exchange and returns a publisher bound to it.
func NewPublisher(broker ports.Broker, log logger.Logger) (*Publisher, error) {
	if err := broker.DeclareTopic(Exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &Publisher{broker: broker, logger: log}, nil
}

// Publish stamps the event and sends it persistent under its routing key.
func (p *Publisher) Publish(ctx context.Context, event *domain.DomainEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("refusing to publish invalid event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if err := p.broker.Publish(ctx, Exchange, event.RoutingKey(), payload, true); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.RoutingKey(), err)
	}

	p.logger.Debug(ctx, "Event published", map[string]interface{}{
		"routing_key": event.RoutingKey(),
		"entity_id":   event.EntityID,
	})
	return nil
}

// PublishNoteEvent is a convenience for the note mutation path.
func (p *Publisher) PublishNoteEvent(ctx context.Context, eventType domain.EventType, entityID, actorID string, before, after domain.EntitySnapshot) error {
	return p.Publish(ctx, &domain.DomainEvent{
		EventType:  eventType,
		EntityType: domain.EntityTypeNote,
		EntityID:   entityID,
		ActorID:    actorID,
		Before:     before,
		After:      after,
	})
}
