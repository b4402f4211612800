package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noteflow/noteflow/internal/ports"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter talks to an OpenAI-compatible API for embeddings and chat
// completions. Both are treated as opaque text functions: the caller only
// sees a vector or an answer, plus an error to classify as retryable.
type OpenAIAdapter struct {
	apiKey         string
	baseURL        string
	embeddingModel string
	chatModel      string
	dimension      int
	client         *http.Client
}

// NewOpenAIAdapter creates an adapter from config, filling model defaults.
func NewOpenAIAdapter(config ports.AIConfig) *OpenAIAdapter {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	embeddingModel := config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-ada-002"
	}
	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = "gpt-3.5-turbo"
	}

	return &OpenAIAdapter{
		apiKey:         config.APIKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
		dimension:      config.EmbeddingDim,
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutMs) * time.Millisecond,
		},
	}
}

// Embed generates the embedding vector for a single text.
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	requestBody := map[string]interface{}{
		"model": a.embeddingModel,
		"input": text,
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	if err := a.post(ctx, "/embeddings", requestBody, &response); err != nil {
		return nil, err
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return response.Data[0].Embedding, nil
}

// Dimension returns the configured embedding dimension.
func (a *OpenAIAdapter) Dimension() int {
	return a.dimension
}

// Complete answers question using contextDocs as grounding material.
func (a *OpenAIAdapter) Complete(ctx context.Context, question string, contextDocs []string) (string, error) {
	prompt := question
	if len(contextDocs) > 0 {
		prompt = fmt.Sprintf("Use the following notes to answer the question.\n\nNotes:\n%s\n\nQuestion: %s",
			strings.Join(contextDocs, "\n---\n"), question)
	}

	requestBody := map[string]interface{}{
		"model": a.chatModel,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a helpful assistant answering questions about the user's notes."},
			{"role": "user", "content": prompt},
		},
		"max_tokens":  500,
		"temperature": 0.7,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := a.post(ctx, "/chat/completions", requestBody, &response); err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return response.Choices[0].Message.Content, nil
}

// IsHealthy checks API connectivity.
func (a *OpenAIAdapter) IsHealthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("AI API health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("AI API returned status: %d", resp.StatusCode)
	}
	return nil
}

func (a *OpenAIAdapter) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call AI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("AI API error: %d - %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
