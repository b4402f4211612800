package domain

import "time"

// AuditRecord is the persisted, queryable copy of a DomainEvent. Records are
// append-only: they are never updated or deleted by normal operation.
// CreatedAt is assigned by the store and is distinct from the event's own
// publisher-assigned timestamp.
type AuditRecord struct {
	ID         string                 `json:"id"`
	EventType  EventType              `json:"eventType"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	ActorID    string                 `json:"actorId,omitempty"`
	Before     EntitySnapshot         `json:"before,omitempty"`
	After      EntitySnapshot         `json:"after,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	EventTime  time.Time              `json:"eventTime"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// AuditRecordFromEvent builds the record persisted by the audit consumer.
// The store fills ID and CreatedAt on insert.
func AuditRecordFromEvent(e *DomainEvent) *AuditRecord {
	return &AuditRecord{
		EventType:  e.EventType,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Before:     e.Before,
		After:      e.After,
		Metadata:   e.Metadata,
		EventTime:  e.Timestamp,
	}
}
