package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/ports"
)

// PostgresUsageRepository implements UsageRepository using PostgreSQL.
type PostgresUsageRepository struct {
	db *sql.DB
}

// NewPostgresUsageRepository creates a new PostgreSQL usage repository.
func NewPostgresUsageRepository(db *sql.DB) ports.UsageRepository {
	return &PostgresUsageRepository{db: db}
}

func (r *PostgresUsageRepository) Record(ctx context.Context, usage *domain.NoteChatbotUsage) error {
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO note_chatbot_usage (id, note_id, question, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		usage.ID,
		usage.NoteID,
		usage.Question,
		nullableString(usage.UserID),
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

func (r *PostgresUsageRepository) CountByNote(ctx context.Context, noteID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_chatbot_usage WHERE note_id = $1`, noteID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return count, nil
}

func (r *PostgresUsageRepository) Statistics(ctx context.Context) ([]*domain.NoteUsageStat, error) {
	query := `
		SELECT n.title, u.note_id, COUNT(*) AS total
		FROM note_chatbot_usage u
		INNER JOIN notes n ON n.id = u.note_id
		GROUP BY n.title, u.note_id
		ORDER BY total DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage statistics: %w", err)
	}
	defer rows.Close()

	var stats []*domain.NoteUsageStat
	for rows.Next() {
		var stat domain.NoteUsageStat
		if err := rows.Scan(&stat.Title, &stat.NoteID, &stat.Total); err != nil {
			return nil, fmt.Errorf("failed to scan usage stat: %w", err)
		}
		stats = append(stats, &stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage stats: %w", err)
	}
	return stats, nil
}
