package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hyperjump/taxqa/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline runs. It returns a
// fixed-dimension vector derived from the text hash so that the same text always gets
// the same embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic unit-length embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := hashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

// StaticEmbedder returns preset vectors keyed by exact text and counts calls.
// Unknown text, or any text once Err is set, fails with a *ServiceError.
type StaticEmbedder struct {
	Vectors map[string][]float32
	Err     error

	mu    sync.Mutex
	calls int
}

// Embed returns the preset vector for text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, &ServiceError{Provider: "static", Kind: KindUpstream, Err: e.Err}
	}
	vec, ok := e.Vectors[text]
	if !ok {
		return nil, &ServiceError{Provider: "static", Kind: KindMalformed, Err: fmt.Errorf("no vector for %q", text)}
	}
	return append([]float32(nil), vec...), nil
}

// Calls returns how many times Embed was invoked.
func (e *StaticEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Dimensions returns the length of any preset vector.
func (e *StaticEmbedder) Dimensions() int {
	for _, v := range e.Vectors {
		return len(v)
	}
	return 0
}

// Close is a no-op.
func (e *StaticEmbedder) Close() error { return nil }
