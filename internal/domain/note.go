package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoteNotFound    = errors.New("note not found")
	ErrNoteTitleEmpty  = errors.New("note title is required")
	ErrNothingToUpdate = errors.New("nothing to update")
)

// Note is the primary entity. Mutations to a note fan out to the audit trail
// and the embedding store through the event pipeline.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewNote creates a note owned by userID.
func NewNote(title, content, userID string) (*Note, error) {
	if title == "" {
		return nil, ErrNoteTitleEmpty
	}
	now := time.Now().UTC()
	return &Note{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Duplicate returns a copy of the note with a fresh identity. The copy is
// marked in its title the same way the UI presents duplicated notes.
func (n *Note) Duplicate() *Note {
	now := time.Now().UTC()
	return &Note{
		ID:        uuid.New().String(),
		Title:     n.Title + " (Copy)",
		Content:   n.Content,
		UserID:    n.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EmbeddingText concatenates the note's textual fields into the single
// document fed to the embedding model.
func (n *Note) EmbeddingText() string {
	return n.Title + "\n" + n.Content
}

// Snapshot returns the note's public fields for event payloads.
func (n *Note) Snapshot() EntitySnapshot {
	return EntitySnapshot{
		"id":        n.ID,
		"title":     n.Title,
		"content":   n.Content,
		"userId":    n.UserID,
		"createdAt": n.CreatedAt,
		"updatedAt": n.UpdatedAt,
	}
}

// NoteUpdate carries the mutable fields of a note; nil means "leave as is".
type NoteUpdate struct {
	Title   *string
	Content *string
}

// Empty reports whether the update would change nothing.
func (u NoteUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil
}

// Apply mutates the note in place and bumps UpdatedAt.
func (u NoteUpdate) Apply(n *Note) {
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Content != nil {
		n.Content = *u.Content
	}
	n.UpdatedAt = time.Now().UTC()
}
