package ports

import (
	"context"
	"time"

	"github.com/noteflow/noteflow/internal/domain"
)

// NoteRepository defines the interface for note persistence.
type NoteRepository interface {
	// Create saves a new note
	Create(ctx context.Context, note *domain.Note) error

	// FindByID retrieves a note by its ID
	FindByID(ctx context.Context, id string) (*domain.Note, error)

	// FindByIDs retrieves the notes for a set of IDs; missing IDs are skipped
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Note, error)

	// FindAll retrieves all notes
	FindAll(ctx context.Context) ([]*domain.Note, error)

	// Update updates an existing note
	Update(ctx context.Context, note *domain.Note) error

	// Delete removes a note; embedding and usage rows cascade at the store level
	Delete(ctx context.Context, id string) error
}

// AuditRepository defines the interface for audit log persistence. Records are
// append-only; there is no update or delete.
type AuditRepository interface {
	// Create persists a new audit record and fills its store-assigned fields
	Create(ctx context.Context, record *domain.AuditRecord) error

	// FindByEntity retrieves records for one entity instance, newest first
	FindByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditRecord, error)

	// FindByEntityType retrieves records for an entity type, newest first
	FindByEntityType(ctx context.Context, entityType string) ([]*domain.AuditRecord, error)

	// FindByEventType retrieves records for one event type, newest first
	FindByEventType(ctx context.Context, eventType domain.EventType) ([]*domain.AuditRecord, error)

	// FindByDateRange retrieves records created between start and end
	FindByDateRange(ctx context.Context, start, end time.Time) ([]*domain.AuditRecord, error)
}

// EmbeddingRepository defines the interface for the embedding store.
type EmbeddingRepository interface {
	// Upsert creates the embedding row for a note or replaces its vector in
	// place; at most one row exists per note id
	Upsert(ctx context.Context, noteID string, embedding []float32) error

	// FindByNoteID retrieves the embedding for a note
	FindByNoteID(ctx context.Context, noteID string) (*domain.NoteEmbedding, error)

	// FindAll retrieves every embedding row
	FindAll(ctx context.Context) ([]*domain.NoteEmbedding, error)
}

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// UsageRepository defines the interface for chatbot usage tracking.
type UsageRepository interface {
	Record(ctx context.Context, usage *domain.NoteChatbotUsage) error
	CountByNote(ctx context.Context, noteID string) (int, error)
	Statistics(ctx context.Context) ([]*domain.NoteUsageStat, error)
}
