package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/ports"
)

// PostgresNoteRepository implements NoteRepository using PostgreSQL.
type PostgresNoteRepository struct {
	db *sql.DB
}

// NewPostgresNoteRepository creates a new PostgreSQL note repository.
func NewPostgresNoteRepository(db *sql.DB) ports.NoteRepository {
	return &PostgresNoteRepository{db: db}
}

func (r *PostgresNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	query := `
		INSERT INTO notes (id, title, content, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		note.ID,
		note.Title,
		note.Content,
		nullableString(note.UserID),
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (r *PostgresNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	query := `
		SELECT id, title, content, user_id, created_at, updated_at
		FROM notes
		WHERE id = $1
	`

	note, err := scanNote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return note, nil
}

func (r *PostgresNoteRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Note, error) {
	if len(ids) == 0 {
		return []*domain.Note{}, nil
	}

	query := `
		SELECT id, title, content, user_id, created_at, updated_at
		FROM notes
		WHERE id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

func (r *PostgresNoteRepository) FindAll(ctx context.Context) ([]*domain.Note, error) {
	query := `
		SELECT id, title, content, user_id, created_at, updated_at
		FROM notes
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	return collectNotes(rows)
}

func (r *PostgresNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	query := `
		UPDATE notes
		SET title = $2, content = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, note.ID, note.Title, note.Content, note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

// Delete removes the note; note_embeddings and note_chatbot_usage rows go
// with it through ON DELETE CASCADE.
func (r *PostgresNoteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var note domain.Note
	var userID sql.NullString

	err := row.Scan(&note.ID, &note.Title, &note.Content, &userID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		note.UserID = userID.String
	}
	return &note, nil
}

func collectNotes(rows *sql.Rows) ([]*domain.Note, error) {
	var notes []*domain.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
