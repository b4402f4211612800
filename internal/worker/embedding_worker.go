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

// EmbeddingQueue is the durable queue the enrichment consumer drains.
const EmbeddingQueue = "notes_embedding_queue"

// embeddingBindings lists the lifecycle events that carry a full post-mutation
// note payload. Deletes are absent: the embedding row is removed by the
// store-level cascade, not by this consumer.
var embeddingBindings = []string{
	domain.EntityTypeNote + "." + string(domain.EventCreated),
	domain.EntityTypeNote + "." + string(domain.EventUpdated),
	domain.EntityTypeNote + "." + string(domain.EventDuplicated),
}

// EmbeddingWorker keeps the semantic-search index eventually consistent with
// the primary store. For each event it embeds the note text and upserts the
// vector keyed by note id, so redelivered events converge to the same state.
type EmbeddingWorker struct {
	broker   ports.Broker
	repo     ports.EmbeddingRepository
	embedder ports.EmbeddingProvider
	logger   logger.Logger
	retries  *retryTracker
	sub      ports.Subscription
}

// NewEmbeddingWorker declares and binds the embedding queue.
func NewEmbeddingWorker(broker ports.Broker, repo ports.EmbeddingRepository, embedder ports.EmbeddingProvider, log logger.Logger) (*EmbeddingWorker, error) {
	if err := broker.DeclareTopic(events.Exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := broker.DeclareQueue(EmbeddingQueue); err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, binding := range embeddingBindings {
		if err := broker.BindQueue(EmbeddingQueue, events.Exchange, binding); err != nil {
			return nil, fmt.Errorf("failed to bind queue: %w", err)
		}
	}
	return &EmbeddingWorker{
		broker:   broker,
		repo:     repo,
		embedder: embedder,
		logger:   log,
		retries:  newRetryTracker(DefaultMaxDeliveryAttempts),
	}, nil
}

// Start begins consuming.
func (w *EmbeddingWorker) Start() error {
	sub, err := w.broker.Consume(EmbeddingQueue, w.handle)
	if err != nil {
		return fmt.Errorf("failed to start embedding worker: %w", err)
	}
	w.sub = sub
	w.logger.Info(context.Background(), "Embedding worker started", map[string]interface{}{
		"queue": EmbeddingQueue,
	})
	return nil
}

// Stop stops consuming after any in-flight message is handled.
func (w *EmbeddingWorker) Stop() error {
	if w.sub == nil {
		return nil
	}
	return w.sub.Close()
}

func (w *EmbeddingWorker) handle(ctx context.Context, d ports.Delivery) ports.Verdict {
	var event domain.DomainEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.logger.Warn(ctx, "Dropping undecodable embedding event", map[string]interface{}{
			"routing_key": d.RoutingKey,
			"error":       err.Error(),
		})
		return ports.Ack
	}

	if err := event.Validate(); err != nil {
		w.logger.Warn(ctx, "Dropping invalid embedding event", map[string]interface{}{
			"routing_key": d.RoutingKey,
			"error":       err.Error(),
		})
		return ports.Ack
	}

	// Only the closed set of enrichment-relevant types reaches this queue,
	// but the switch keeps the dispatch exhaustive rather than trusting
	// binding configuration.
	switch event.EventType {
	case domain.EventCreated, domain.EventUpdated, domain.EventDuplicated:
		return w.enrich(ctx, d, &event)
	case domain.EventDeleted:
		// Cascade at the store level already removed the row.
		return ports.Ack
	default:
		w.logger.Warn(ctx, "No enrichment handler for event type", map[string]interface{}{
			"event_type": string(event.EventType),
		})
		return ports.Ack
	}
}

// enrich embeds the note text and upserts the vector. An embedding failure
// requeues the message: the model dependency may recover, and retries are
// the primary recovery mechanism for eventual consistency. Retries are
// capped per message so one poison event cannot monopolize the consumer.
func (w *EmbeddingWorker) enrich(ctx context.Context, d ports.Delivery, event *domain.DomainEvent) ports.Verdict {
	title, _ := event.After["title"].(string)
	content, _ := event.After["content"].(string)
	if event.After == nil || (title == "" && content == "") {
		w.logger.Warn(ctx, "Dropping embedding event without note payload", map[string]interface{}{
			"entity_id": event.EntityID,
		})
		return ports.Ack
	}

	text := title + "\n" + content
	embedding, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return w.retryOrPark(ctx, d, event, "Failed to generate embedding", err)
	}

	if err := w.repo.Upsert(ctx, event.EntityID, embedding); err != nil {
		return w.retryOrPark(ctx, d, event, "Failed to upsert embedding", err)
	}
	w.retries.succeeded(d)

	w.logger.Debug(ctx, "Embedding upserted", map[string]interface{}{
		"entity_id": event.EntityID,
		"dimension": len(embedding),
	})
	return ports.Ack
}

func (w *EmbeddingWorker) retryOrPark(ctx context.Context, d ports.Delivery, event *domain.DomainEvent, msg string, err error) ports.Verdict {
	verdict, parked := w.retries.failed(d)
	if parked {
		w.logger.Error(ctx, "Parking embedding event after repeated failures", err, map[string]interface{}{
			"entity_id":    event.EntityID,
			"max_attempts": DefaultMaxDeliveryAttempts,
		})
	} else {
		w.logger.Error(ctx, msg+", requeueing", err, map[string]interface{}{
			"entity_id": event.EntityID,
		})
	}
	return verdict
}
