package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/ports"
)

// fakeNoteRepo is an in-memory ports.NoteRepository preserving insertion order.
type fakeNoteRepo struct {
	mu    sync.Mutex
	notes map[string]*domain.Note
	order []string
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[string]*domain.Note)}
}

func (f *fakeNoteRepo) Create(ctx context.Context, note *domain.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *note
	f.notes[note.ID] = &clone
	f.order = append(f.order, note.ID)
	return nil
}

func (f *fakeNoteRepo) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, ok := f.notes[id]
	if !ok {
		return nil, domain.ErrNoteNotFound
	}
	clone := *note
	return &clone, nil
}

func (f *fakeNoteRepo) FindByIDs(ctx context.Context, ids []string) ([]*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Note
	// Deliberately not in requested order; the store makes no order promise.
	for _, id := range f.order {
		for _, want := range ids {
			if id == want {
				clone := *f.notes[id]
				out = append(out, &clone)
			}
		}
	}
	return out, nil
}

func (f *fakeNoteRepo) FindAll(ctx context.Context) ([]*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Note, 0, len(f.order))
	for _, id := range f.order {
		clone := *f.notes[id]
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeNoteRepo) Update(ctx context.Context, note *domain.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[note.ID]; !ok {
		return domain.ErrNoteNotFound
	}
	clone := *note
	f.notes[note.ID] = &clone
	return nil
}

func (f *fakeNoteRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[id]; !ok {
		return domain.ErrNoteNotFound
	}
	delete(f.notes, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// fakeEmbeddingRepo holds embeddings keyed by note id.
type fakeEmbeddingRepo struct {
	mu     sync.Mutex
	byNote map[string]*domain.NoteEmbedding
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{byNote: make(map[string]*domain.NoteEmbedding)}
}

func (f *fakeEmbeddingRepo) put(noteID string, embedding []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byNote[noteID] = &domain.NoteEmbedding{
		ID:        uuid.New().String(),
		NoteID:    noteID,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
}

func (f *fakeEmbeddingRepo) Upsert(ctx context.Context, noteID string, embedding []float32) error {
	f.put(noteID, embedding)
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

// fakeUsageRepo records chatbot usage in memory.
type fakeUsageRepo struct {
	mu      sync.Mutex
	usages  []*domain.NoteChatbotUsage
	failing bool
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{}
}

func (f *fakeUsageRepo) Record(ctx context.Context, usage *domain.NoteChatbotUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("usage store unavailable")
	}
	usage.CreatedAt = time.Now().UTC()
	f.usages = append(f.usages, usage)
	return nil
}

func (f *fakeUsageRepo) CountByNote(ctx context.Context, noteID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, u := range f.usages {
		if u.NoteID == noteID {
			count++
		}
	}
	return count, nil
}

func (f *fakeUsageRepo) Statistics(ctx context.Context) ([]*domain.NoteUsageStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	totals := make(map[string]int)
	for _, u := range f.usages {
		totals[u.NoteID]++
	}
	out := make([]*domain.NoteUsageStat, 0, len(totals))
	for noteID, total := range totals {
		out = append(out, &domain.NoteUsageStat{NoteID: noteID, Total: total})
	}
	return out, nil
}

// stubEmbedder returns a fixed vector for any text.
type stubEmbedder struct {
	vector []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vector, nil
}

func (s *stubEmbedder) Dimension() int {
	return len(s.vector)
}

// stubChat echoes the question with the document count.
type stubChat struct {
	lastQuestion string
	lastDocs     []string
}

func (s *stubChat) Complete(ctx context.Context, question string, contextDocs []string) (string, error) {
	s.lastQuestion = question
	s.lastDocs = contextDocs
	return "stub answer", nil
}

var _ ports.NoteRepository = (*fakeNoteRepo)(nil)
var _ ports.EmbeddingRepository = (*fakeEmbeddingRepo)(nil)
var _ ports.UsageRepository = (*fakeUsageRepo)(nil)
var _ ports.EmbeddingProvider = (*stubEmbedder)(nil)
var _ ports.ChatProvider = (*stubChat)(nil)
