package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainEmbedder adapts a langchaingo embedder (OpenAI-compatible or Ollama) to Embedder.
type LangChainEmbedder struct {
	provider string
	impl     *embeddings.EmbedderImpl

	mu         sync.Mutex
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for any OpenAI-compatible endpoint.
// baseURL may be empty for the public API.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions int) (*LangChainEmbedder, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	return &LangChainEmbedder{provider: "openai", impl: impl, dimensions: dimensions}, nil
}

// NewOllamaEmbedder creates an embedder backed by a local Ollama server.
func NewOllamaEmbedder(serverURL, model string, dimensions int) (*LangChainEmbedder, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return &LangChainEmbedder{provider: "ollama", impl: impl, dimensions: dimensions}, nil
}

// Embed returns the embedding for text.
func (e *LangChainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &ServiceError{Provider: e.provider, Kind: KindUpstream, Err: err}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := checkVector(e.provider, vec, e.dimensions); err != nil {
		return nil, err
	}
	if e.dimensions == 0 {
		e.dimensions = len(vec)
	}
	return vec, nil
}

// Dimensions returns the vector length, fixed by configuration or the first response.
func (e *LangChainEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// Close is a no-op; langchaingo clients hold no resources that need releasing.
func (e *LangChainEmbedder) Close() error {
	return nil
}
