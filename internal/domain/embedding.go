package domain

import (
	"math"
	"time"
)

// NoteEmbedding maps one note to one dense vector. At most one row exists per
// note id; repeated enrichment updates the row in place. Rows are removed by
// the store-level cascade when the owning note is deleted.
type NoteEmbedding struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"noteId"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"createdAt"`
}

// CosineSimilarity scores two vectors as dot(a,b) / (|a|*|b|). A zero-magnitude
// vector yields 0, never NaN; mismatched lengths also score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
