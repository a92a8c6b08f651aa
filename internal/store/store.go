// Package store persists document chunks and their embedding vectors.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/taxqa/internal/models"
)

var (
	// ErrInvalidChunk is returned when a chunk is missing content, source, index or vector.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrDimensionMismatch is returned when a vector length differs from the store's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrNearestNeighborsUnsupported is returned by backends without native nearest-neighbour search.
	ErrNearestNeighborsUnsupported = errors.New("nearest-neighbour search not supported by this backend")
)

// ChunkStore is the persistence boundary for chunks. Insert is atomic per call where the
// backend supports transactions; ScanAll returns chunks in insertion order.
type ChunkStore interface {
	Insert(ctx context.Context, chunks ...*models.DocumentChunk) error
	DeleteAll(ctx context.Context) error
	ScanAll(ctx context.Context) ([]*models.DocumentChunk, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// ScoredChunk is a nearest-neighbour hit. Similarity is cosine similarity in [-1, 1].
type ScoredChunk struct {
	Chunk      *models.DocumentChunk
	Similarity float64
}

// NearestNeighborSearcher is implemented by backends with a native similarity search.
// candidates bounds the internal search pool; backends with exact search may ignore it.
type NearestNeighborSearcher interface {
	NearestNeighbors(ctx context.Context, vector []float32, candidates, limit int) ([]ScoredChunk, error)
}

// Validate checks a chunk before it is stored. dims is the store's fixed dimension, or 0 if
// none has been fixed yet.
func Validate(c *models.DocumentChunk, dims int) error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil chunk", ErrInvalidChunk)
	case c.Content == "":
		return fmt.Errorf("%w: empty content", ErrInvalidChunk)
	case c.Source == "":
		return fmt.Errorf("%w: empty source", ErrInvalidChunk)
	case c.ChunkIndex < 0:
		return fmt.Errorf("%w: negative chunk index %d", ErrInvalidChunk, c.ChunkIndex)
	case len(c.Embedding) == 0:
		return fmt.Errorf("%w: missing embedding", ErrInvalidChunk)
	case dims > 0 && len(c.Embedding) != dims:
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(c.Embedding), dims)
	}
	return nil
}

// validateBatch validates chunks against dims and returns the dimension the batch fixes.
// When dims is 0 the first chunk's vector length becomes the dimension.
func validateBatch(chunks []*models.DocumentChunk, dims int) (int, error) {
	for _, c := range chunks {
		if err := Validate(c, dims); err != nil {
			return 0, fmt.Errorf("chunk %d of %q: %w", chunkIndex(c), chunkSource(c), err)
		}
		if dims == 0 {
			dims = len(c.Embedding)
		}
	}
	return dims, nil
}

func chunkIndex(c *models.DocumentChunk) int {
	if c == nil {
		return -1
	}
	return c.ChunkIndex
}

func chunkSource(c *models.DocumentChunk) string {
	if c == nil {
		return ""
	}
	return c.Source
}

func cloneChunk(c *models.DocumentChunk) *models.DocumentChunk {
	cp := *c
	cp.Embedding = append([]float32(nil), c.Embedding...)
	return &cp
}
