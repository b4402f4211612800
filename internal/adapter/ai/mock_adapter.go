package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// MockAdapter provides deterministic embeddings and canned completions for
// tests and local mode. The same text always yields the same vector, so
// idempotency properties can be asserted exactly.
type MockAdapter struct {
	dimension int
}

// NewMockAdapter creates a mock adapter producing vectors of dimension.
func NewMockAdapter(dimension int) *MockAdapter {
	return &MockAdapter{dimension: dimension}
}

// Embed generates a deterministic pseudo-random unit vector seeded by text.
func (m *MockAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	embedding := make([]float32, m.dimension)
	seed := hashText(text)
	var norm float64
	for i := range embedding {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed>>33)) / float32(math.MaxInt32)
		embedding[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range embedding {
			embedding[i] *= scale
		}
	}
	return embedding, nil
}

// Dimension returns the configured vector dimension.
func (m *MockAdapter) Dimension() int {
	return m.dimension
}

// Complete returns a canned answer referencing the context documents.
func (m *MockAdapter) Complete(ctx context.Context, question string, contextDocs []string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if len(contextDocs) == 0 {
		return fmt.Sprintf("I could not find any notes related to: %s", question), nil
	}
	return fmt.Sprintf("Based on %d note(s): %s", len(contextDocs), strings.Join(firstLines(contextDocs), "; ")), nil
}

func hashText(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}

func firstLines(docs []string) []string {
	lines := make([]string, len(docs))
	for i, doc := range docs {
		line := doc
		if idx := strings.IndexByte(doc, '\n'); idx >= 0 {
			line = doc[:idx]
		}
		lines[i] = line
	}
	return lines
}
