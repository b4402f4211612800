package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/ports"
)

// PostgresEmbeddingRepository implements EmbeddingRepository using PostgreSQL.
// Vectors are stored as JSON arrays; note_id carries a unique constraint so
// the upsert can rely on ON CONFLICT.
type PostgresEmbeddingRepository struct {
	db *sql.DB
}

// NewPostgresEmbeddingRepository creates a new PostgreSQL embedding repository.
func NewPostgresEmbeddingRepository(db *sql.DB) ports.EmbeddingRepository {
	return &PostgresEmbeddingRepository{db: db}
}

// Upsert inserts the embedding row for noteID or replaces its vector in
// place. Redelivered enrichment events converge on the same row instead of
// inserting duplicates.
func (r *PostgresEmbeddingRepository) Upsert(ctx context.Context, noteID string, embedding []float32) error {
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	query := `
		INSERT INTO note_embeddings (id, note_id, embedding, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (note_id) DO UPDATE SET embedding = EXCLUDED.embedding
	`

	_, err = r.db.ExecContext(ctx, query,
		uuid.New().String(),
		noteID,
		embeddingJSON,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (r *PostgresEmbeddingRepository) FindByNoteID(ctx context.Context, noteID string) (*domain.NoteEmbedding, error) {
	query := `
		SELECT id, note_id, embedding, created_at
		FROM note_embeddings
		WHERE note_id = $1
	`

	var record domain.NoteEmbedding
	var embeddingJSON []byte

	err := r.db.QueryRowContext(ctx, query, noteID).Scan(&record.ID, &record.NoteID, &embeddingJSON, &record.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find embedding: %w", err)
	}

	if err := json.Unmarshal(embeddingJSON, &record.Embedding); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}
	return &record, nil
}

func (r *PostgresEmbeddingRepository) FindAll(ctx context.Context) ([]*domain.NoteEmbedding, error) {
	query := `
		SELECT id, note_id, embedding, created_at
		FROM note_embeddings
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var records []*domain.NoteEmbedding
	for rows.Next() {
		var record domain.NoteEmbedding
		var embeddingJSON []byte

		if err := rows.Scan(&record.ID, &record.NoteID, &embeddingJSON, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		if err := json.Unmarshal(embeddingJSON, &record.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}
	return records, nil
}
