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

// PostgresAuditRepository implements AuditRepository using PostgreSQL. The
// audit_logs table is append-only; there is no update or delete path.
type PostgresAuditRepository struct {
	db *sql.DB
}

// NewPostgresAuditRepository creates a new PostgreSQL audit repository.
func NewPostgresAuditRepository(db *sql.DB) ports.AuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	beforeJSON, err := marshalSnapshot(record.Before)
	if err != nil {
		return fmt.Errorf("failed to marshal before snapshot: %w", err)
	}
	afterJSON, err := marshalSnapshot(record.After)
	if err != nil {
		return fmt.Errorf("failed to marshal after snapshot: %w", err)
	}
	metadataJSON, err := marshalMap(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, event_type, entity_type, entity_id, actor_id, before_data, after_data, metadata, event_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		string(record.EventType),
		record.EntityType,
		record.EntityID,
		nullableString(record.ActorID),
		beforeJSON,
		afterJSON,
		metadataJSON,
		record.EventTime,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit record: %w", err)
	}
	return nil
}

const auditColumns = `id, event_type, entity_type, entity_id, actor_id, before_data, after_data, metadata, event_time, created_at`

func (r *PostgresAuditRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at DESC`
	return r.query(ctx, query, entityType, entityID)
}

func (r *PostgresAuditRepository) FindByEntityType(ctx context.Context, entityType string) ([]*domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE entity_type = $1 ORDER BY created_at DESC`
	return r.query(ctx, query, entityType)
}

func (r *PostgresAuditRepository) FindByEventType(ctx context.Context, eventType domain.EventType) ([]*domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE event_type = $1 ORDER BY created_at DESC`
	return r.query(ctx, query, string(eventType))
}

func (r *PostgresAuditRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]*domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at DESC`
	return r.query(ctx, query, start, end)
}

func (r *PostgresAuditRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		var actorID sql.NullString
		var beforeJSON, afterJSON, metadataJSON []byte

		err := rows.Scan(
			&record.ID,
			&record.EventType,
			&record.EntityType,
			&record.EntityID,
			&actorID,
			&beforeJSON,
			&afterJSON,
			&metadataJSON,
			&record.EventTime,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		if actorID.Valid {
			record.ActorID = actorID.String
		}
		if len(beforeJSON) > 0 {
			if err := json.Unmarshal(beforeJSON, &record.Before); err != nil {
				return nil, fmt.Errorf("failed to unmarshal before snapshot: %w", err)
			}
		}
		if len(afterJSON) > 0 {
			if err := json.Unmarshal(afterJSON, &record.After); err != nil {
				return nil, fmt.Errorf("failed to unmarshal after snapshot: %w", err)
			}
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}

func marshalSnapshot(s domain.EntitySnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func marshalMap(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
