package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/logger"
)

// ChatUseCase is the retrieval service: it answers questions against the
// embedding store built by the enrichment consumer. Reads happen out of band
// from the write path and see an eventually consistent index.
type ChatUseCase struct {
	notes      ports.NoteRepository
	embeddings ports.EmbeddingRepository
	usage      ports.UsageRepository
	embedder   ports.EmbeddingProvider
	chat       ports.ChatProvider
	topK       int
	logger     logger.Logger
}

// ChatResult is the answer plus the notes it was grounded on.
type ChatResult struct {
	Answer string    `json:"answer"`
	Notes  []NoteRef `json:"notes"`
}

// NoteRef is a lightweight reference to a supporting note.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NewChatUseCase wires the retrieval service.
func NewChatUseCase(notes ports.NoteRepository, embeddings ports.EmbeddingRepository, usage ports.UsageRepository, embedder ports.EmbeddingProvider, chat ports.ChatProvider, topK int, log logger.Logger) *ChatUseCase {
	if topK <= 0 {
		topK = 3
	}
	return &ChatUseCase{
		notes:      notes,
		embeddings: embeddings,
		usage:      usage,
		embedder:   embedder,
		chat:       chat,
		topK:       topK,
		logger:     log,
	}
}

// FindRelevantNotes ranks every stored embedding by cosine similarity to the
// query and returns the topK notes in descending score order. An empty
// embedding store yields an empty result, not an error. The scan is linear;
// swapping in an approximate-nearest-neighbor index would not change this
// contract.
func (uc *ChatUseCase) FindRelevantNotes(ctx context.Context, question string, topK int) ([]*domain.Note, error) {
	if topK <= 0 {
		topK = uc.topK
	}

	queryEmbedding, err := uc.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	records, err := uc.embeddings.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	if len(records) == 0 {
		return []*domain.Note{}, nil
	}

	type scored struct {
		noteID string
		score  float64
	}
	scores := make([]scored, 0, len(records))
	for _, record := range records {
		scores = append(scores, scored{
			noteID: record.NoteID,
			score:  domain.CosineSimilarity(queryEmbedding, record.Embedding),
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if topK > len(scores) {
		topK = len(scores)
	}
	ids := make([]string, 0, topK)
	for _, s := range scores[:topK] {
		ids = append(ids, s.noteID)
	}

	notes, err := uc.notes.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}

	// Re-order the fetched notes by rank; the store does not preserve the
	// requested id order.
	byID := make(map[string]*domain.Note, len(notes))
	for _, note := range notes {
		byID[note.ID] = note
	}
	ordered := make([]*domain.Note, 0, len(ids))
	for _, id := range ids {
		if note, ok := byID[id]; ok {
			ordered = append(ordered, note)
		}
	}
	return ordered, nil
}

// Chat answers the question over the most relevant notes and records per-note
// chatbot usage for the statistics endpoint.
func (uc *ChatUseCase) Chat(ctx context.Context, question, userID string) (*ChatResult, error) {
	notes, err := uc.FindRelevantNotes(ctx, question, uc.topK)
	if err != nil {
		return nil, err
	}

	docs := make([]string, 0, len(notes))
	refs := make([]NoteRef, 0, len(notes))
	for _, note := range notes {
		docs = append(docs, note.EmbeddingText())
		refs = append(refs, NoteRef{ID: note.ID, Title: note.Title})
	}

	answer, err := uc.chat.Complete(ctx, question, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	for _, note := range notes {
		usage := &domain.NoteChatbotUsage{
			ID:       uuid.New().String(),
			NoteID:   note.ID,
			Question: question,
			UserID:   userID,
		}
		if err := uc.usage.Record(ctx, usage); err != nil {
			// Usage tracking is analytics, not correctness; the answer
			// still goes out.
			uc.logger.Warn(ctx, "Failed to record chatbot usage", map[string]interface{}{
				"note_id": note.ID,
				"error":   err.Error(),
			})
		}
	}

	return &ChatResult{Answer: answer, Notes: refs}, nil
}

// UsageStatistics returns per-note chatbot usage totals.
func (uc *ChatUseCase) UsageStatistics(ctx context.Context) ([]*domain.NoteUsageStat, error) {
	return uc.usage.Statistics(ctx)
}
