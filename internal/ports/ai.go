package ports

import "context"

// EmbeddingProvider turns text into a fixed-dimension vector. Latency and
// availability are unspecified; callers treat failures as retryable.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ChatProvider answers a question given supporting context documents.
type ChatProvider interface {
	Complete(ctx context.Context, question string, contextDocs []string) (string, error)
}

// AIConfig configures an AI adapter.
type AIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	EmbeddingDim   int
	TimeoutMs      int
}
