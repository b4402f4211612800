package domain

import (
	"errors"
	"time"
)

// EventType identifies the lifecycle operation that produced an event.
type EventType string

const (
	EventCreated    EventType = "created"
	EventUpdated    EventType = "updated"
	EventDeleted    EventType = "deleted"
	EventDuplicated EventType = "duplicated"
)

// Valid reports whether the event type is one of the known lifecycle types.
func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted, EventDuplicated:
		return true
	}
	return false
}

// EntityTypeNote is the aggregate name used in routing keys for notes.
const EntityTypeNote = "note"

var (
	ErrEventMissingType     = errors.New("event type is missing or unknown")
	ErrEventMissingEntity   = errors.New("entity type is missing")
	ErrEventMissingEntityID = errors.New("entity id is missing")
	ErrEventInvalidSnapshot = errors.New("event snapshots do not match event type")
)

// EntitySnapshot captures the public fields of an entity before or after a
// mutation. Snapshots travel inside events and are stored verbatim by the
// audit trail.
type EntitySnapshot map[string]interface{}

// DomainEvent is the unit of transport between the mutation path and the
// derived-store consumers. It is constructed after a primary-store write
// commits and is immutable once published.
type DomainEvent struct {
	EventType  EventType              `json:"eventType"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	ActorID    string                 `json:"actorId,omitempty"`
	Before     EntitySnapshot         `json:"before,omitempty"`
	After      EntitySnapshot         `json:"after,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Validate checks the invariants every consumer relies on. Consumers drop
// events failing validation instead of requeueing them: a malformed message
// cannot self-heal on redelivery.
func (e *DomainEvent) Validate() error {
	if !e.EventType.Valid() {
		return ErrEventMissingType
	}
	if e.EntityType == "" {
		return ErrEventMissingEntity
	}
	if e.EntityID == "" {
		return ErrEventMissingEntityID
	}
	if e.EventType == EventCreated && e.Before != nil {
		return ErrEventInvalidSnapshot
	}
	if e.EventType == EventDeleted && e.After != nil {
		return ErrEventInvalidSnapshot
	}
	return nil
}

// RoutingKey returns the broker routing key for the event, e.g. "note.created".
func (e *DomainEvent) RoutingKey() string {
	return e.EntityType + "." + string(e.EventType)
}
