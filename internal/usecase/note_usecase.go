package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/events"
	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/logger"
	"github.com/noteflow/noteflow/pkg/apperror"
)

// NoteUseCase implements the note mutation path: primary-store write first,
// event publish after commit, and a per-entity distributed lock around
// read-modify-write sections so concurrent updates to the same note are
// serialized across process instances.
type NoteUseCase struct {
	notes     ports.NoteRepository
	publisher *events.Publisher
	locks     ports.LockManager
	lockTTL   time.Duration
	logger    logger.Logger
}

// NewNoteUseCase wires the note use case.
func NewNoteUseCase(notes ports.NoteRepository, publisher *events.Publisher, locks ports.LockManager, lockTTL time.Duration, log logger.Logger) *NoteUseCase {
	return &NoteUseCase{
		notes:     notes,
		publisher: publisher,
		locks:     locks,
		lockTTL:   lockTTL,
		logger:    log,
	}
}

func lockKey(noteID string) string {
	return domain.EntityTypeNote + ":" + noteID
}

// Create stores a new note and publishes note.created. A publish failure
// fails the request: a note invisible to the derived stores would silently
// diverge, and the caller can simply retry the creation.
func (uc *NoteUseCase) Create(ctx context.Context, title, content, actorID string) (*domain.Note, error) {
	note, err := domain.NewNote(title, content, actorID)
	if err != nil {
		return nil, err
	}

	if err := uc.notes.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	if err := uc.publisher.PublishNoteEvent(ctx, domain.EventCreated, note.ID, actorID, nil, note.Snapshot()); err != nil {
		return nil, err
	}

	return note, nil
}

// Get returns one note.
func (uc *NoteUseCase) Get(ctx context.Context, id string) (*domain.Note, error) {
	return uc.notes.FindByID(ctx, id)
}

// List returns all notes.
func (uc *NoteUseCase) List(ctx context.Context) ([]*domain.Note, error) {
	return uc.notes.FindAll(ctx)
}

// Update applies a partial update under the note's entity lock. A lock
// timeout rejects the mutation with a distinct error instead of retrying
// indefinitely.
func (uc *NoteUseCase) Update(ctx context.Context, id string, update domain.NoteUpdate, actorID string) (*domain.Note, error) {
	if update.Empty() {
		return nil, domain.ErrNothingToUpdate
	}

	lock, err := uc.locks.Acquire(ctx, lockKey(id), uc.lockTTL)
	if err != nil {
		if errors.Is(err, ports.ErrLockTimeout) {
			return nil, apperror.ErrLockTimeout
		}
		return nil, err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			uc.logger.Warn(ctx, "Failed to release note lock", map[string]interface{}{
				"note_id": id,
				"error":   err.Error(),
			})
		}
	}()

	note, err := uc.notes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := note.Snapshot()

	update.Apply(note)
	if err := uc.notes.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	if err := uc.publisher.PublishNoteEvent(ctx, domain.EventUpdated, note.ID, actorID, before, note.Snapshot()); err != nil {
		return nil, err
	}

	return note, nil
}

// Delete removes a note. Embedding and usage rows go with it via the store
// cascade. A publish failure here is logged but does not fail the request:
// the derived rows are already gone, the audit trail just misses one entry.
func (uc *NoteUseCase) Delete(ctx context.Context, id, actorID string) error {
	note, err := uc.notes.FindByID(ctx, id)
	if err != nil {
		return err
	}
	before := note.Snapshot()

	if err := uc.notes.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	if err := uc.publisher.PublishNoteEvent(ctx, domain.EventDeleted, id, actorID, before, nil); err != nil {
		uc.logger.Error(ctx, "Failed to publish delete event", err, map[string]interface{}{
			"note_id": id,
		})
	}

	return nil
}

// Duplicate copies a note under the source note's lock, so the copy is taken
// from a stable snapshot even while concurrent updates race for the source.
// The event's entity id is the new copy: that is the entity whose embedding
// the enrichment consumer must build.
func (uc *NoteUseCase) Duplicate(ctx context.Context, id, actorID string) (*domain.Note, error) {
	lock, err := uc.locks.Acquire(ctx, lockKey(id), uc.lockTTL)
	if err != nil {
		if errors.Is(err, ports.ErrLockTimeout) {
			return nil, apperror.ErrLockTimeout
		}
		return nil, err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			uc.logger.Warn(ctx, "Failed to release note lock", map[string]interface{}{
				"note_id": id,
				"error":   err.Error(),
			})
		}
	}()

	original, err := uc.notes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	copy := original.Duplicate()
	if err := uc.notes.Create(ctx, copy); err != nil {
		return nil, fmt.Errorf("failed to create duplicate: %w", err)
	}

	event := &domain.DomainEvent{
		EventType:  domain.EventDuplicated,
		EntityType: domain.EntityTypeNote,
		EntityID:   copy.ID,
		ActorID:    actorID,
		Before:     original.Snapshot(),
		After:      copy.Snapshot(),
		Metadata:   map[string]interface{}{"sourceNoteId": original.ID},
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		return nil, err
	}

	return copy, nil
}
