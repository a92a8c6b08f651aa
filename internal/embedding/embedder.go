// Package embedding maps text to fixed-length vectors through an external embedding service.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must return an error
// rather than an empty or zero-filled vector when the service fails.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the configured vector length, or 0 when it is fixed by the first response.
	Dimensions() int
	Close() error
}
