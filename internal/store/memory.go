package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// MemoryStore keeps chunks in process memory. It is used by tests and offline runs and
// supports exact nearest-neighbour search.
type MemoryStore struct {
	mu         sync.RWMutex
	configured int
	dims       int
	chunks     []*models.DocumentChunk
}

// NewMemoryStore creates an empty store. dims of 0 lets the first insert fix the dimension.
func NewMemoryStore(dims int) *MemoryStore {
	return &MemoryStore{configured: dims, dims: dims}
}

// Insert validates and appends chunks. Nothing is stored if any chunk is invalid.
func (m *MemoryStore) Insert(ctx context.Context, chunks ...*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	dims, err := validateBatch(chunks, m.dims)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, c := range chunks {
		cp := cloneChunk(c)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		m.chunks = append(m.chunks, cp)
	}
	m.dims = dims
	return nil
}

// DeleteAll removes every chunk.
func (m *MemoryStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.dims = m.configured
	return nil
}

// ScanAll returns copies of all chunks in insertion order.
func (m *MemoryStore) ScanAll(ctx context.Context) ([]*models.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.DocumentChunk, len(m.chunks))
	for i, c := range m.chunks {
		out[i] = cloneChunk(c)
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// NearestNeighbors returns the limit most similar chunks by exact cosine similarity.
// candidates is ignored because the search is exhaustive.
func (m *MemoryStore) NearestNeighbors(ctx context.Context, vector []float32, candidates, limit int) ([]ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}
	scored := make([]ScoredChunk, len(m.chunks))
	for i, c := range m.chunks {
		scored[i] = ScoredChunk{Chunk: cloneChunk(c), Similarity: utils.CosineSimilarity(vector, c.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return rank(scored[i].Similarity) > rank(scored[j].Similarity)
	})
	if limit > len(scored) {
		limit = len(scored)
	}
	return scored[:limit], nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

// rank orders NaN below every real score.
func rank(s float64) float64 {
	if math.IsNaN(s) {
		return math.Inf(-1)
	}
	return s
}
