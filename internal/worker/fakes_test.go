package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/ports"
)

// fakeAuditRepo is an in-memory ports.AuditRepository with failure injection.
type fakeAuditRepo struct {
	mu       sync.Mutex
	records  []*domain.AuditRecord
	failures int
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (f *fakeAuditRepo) Create(ctx context.Context, record *domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("audit store unavailable")
	}
	record.ID = uuid.New().String()
	record.CreatedAt = time.Now().UTC()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAuditRepo) all() []*domain.AuditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.AuditRecord, len(f.records))
	copy(out, f.records)
	return out
}

func (f *fakeAuditRepo) FindByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AuditRecord
	for _, r := range f.records {
		if r.EntityType == entityType && r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) FindByEntityType(ctx context.Context, entityType string) ([]*domain.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AuditRecord
	for _, r := range f.records {
		if r.EntityType == entityType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) FindByEventType(ctx context.Context, eventType domain.EventType) ([]*domain.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AuditRecord
	for _, r := range f.records {
		if r.EventType == eventType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) FindByDateRange(ctx context.Context, start, end time.Time) ([]*domain.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AuditRecord
	for _, r := range f.records {
		if !r.CreatedAt.Before(start) && !r.CreatedAt.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeEmbeddingRepo is an in-memory ports.EmbeddingRepository keyed by note
// id, with failure injection.
type fakeEmbeddingRepo struct {
	mu       sync.Mutex
	byNote   map[string]*domain.NoteEmbedding
	upserts  int
	failures int
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{byNote: make(map[string]*domain.NoteEmbedding)}
}

func (f *fakeEmbeddingRepo) Upsert(ctx context.Context, noteID string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("embedding store unavailable")
	}
	f.upserts++
	if existing, ok := f.byNote[noteID]; ok {
		existing.Embedding = embedding
		return nil
	}
	f.byNote[noteID] = &domain.NoteEmbedding{
		ID:        uuid.New().String(),
		NoteID:    noteID,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeEmbeddingRepo) FindByNoteID(ctx context.Context, noteID string) (*domain.NoteEmbedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byNote[noteID], nil
}

func (f *fakeEmbeddingRepo) FindAll(ctx context.Context) ([]*domain.NoteEmbedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.NoteEmbedding, 0, len(f.byNote))
	for _, e := range f.byNote {
		out = append(out, e)
	}
	return out, nil
}

var _ ports.AuditRepository = (*fakeAuditRepo)(nil)
var _ ports.EmbeddingRepository = (*fakeEmbeddingRepo)(nil)
