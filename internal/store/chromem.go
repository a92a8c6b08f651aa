package store

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/pkg/utils"
)

const (
	metaChunkID    = "chunk_id"
	metaSource     = "source"
	metaChunkIndex = "chunk_index"
	metaCreatedAt  = "created_at"
)

var errPrecomputedOnly = errors.New("chromem store accepts precomputed embeddings only")

// ChromemStore implements ChunkStore and NearestNeighborSearcher on a chromem-go collection.
// Documents are keyed by a zero-padded insertion sequence so ScanAll can return them in
// insertion order. chromem normalizes vectors on insert, so scanned vectors have unit length.
type ChromemStore struct {
	db   *chromem.DB
	name string

	mu         sync.Mutex
	collection *chromem.Collection
	seq        int
	configured int
	dims       int
}

// NewChromemStore opens a persistent chromem database at path, or an in-memory one when path
// is empty, and gets or creates the named collection.
func NewChromemStore(path, collection string, dims int) (*ChromemStore, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
	}
	s := &ChromemStore{db: db, name: collection, configured: dims, dims: dims}
	if err := s.openCollection(); err != nil {
		return nil, err
	}
	s.seq = s.collection.Count()
	if s.dims == 0 && s.seq > 0 {
		doc, err := s.collection.GetByID(context.Background(), seqID(0))
		if err != nil {
			return nil, fmt.Errorf("failed to read stored dimension: %w", err)
		}
		s.dims = len(doc.Embedding)
	}
	return s, nil
}

func (s *ChromemStore) openCollection() error {
	c, err := s.db.GetOrCreateCollection(s.name, nil, func(context.Context, string) ([]float32, error) {
		return nil, errPrecomputedOnly
	})
	if err != nil {
		return fmt.Errorf("failed to create/get collection %s: %w", s.name, err)
	}
	s.collection = c
	return nil
}

func seqID(n int) string {
	return fmt.Sprintf("%08d", n)
}

// Insert adds chunks. If chromem rejects part of the batch, the documents already added by
// this call are removed again.
func (s *ChromemStore) Insert(ctx context.Context, chunks ...*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dims, err := validateBatch(chunks, s.dims)
	if err != nil {
		return err
	}

	now := time.Now()
	docs := make([]chromem.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		ids[i] = seqID(s.seq + i)
		docs[i] = chromem.Document{
			ID:      ids[i],
			Content: c.Content,
			Metadata: map[string]string{
				metaChunkID:    c.ID,
				metaSource:     c.Source,
				metaChunkIndex: strconv.Itoa(c.ChunkIndex),
				metaCreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339Nano),
			},
			Embedding: append([]float32(nil), c.Embedding...),
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		_ = s.collection.Delete(context.Background(), nil, nil, ids...)
		return fmt.Errorf("failed to add documents: %w", err)
	}
	s.seq += len(chunks)
	s.dims = dims
	return nil
}

// DeleteAll drops and recreates the collection.
func (s *ChromemStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := s.openCollection(); err != nil {
		return err
	}
	s.seq = 0
	s.dims = s.configured
	return nil
}

// ScanAll returns all chunks in insertion order.
func (s *ChromemStore) ScanAll(ctx context.Context) ([]*models.DocumentChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := make([]*models.DocumentChunk, 0, s.seq)
	for i := 0; i < s.seq; i++ {
		doc, err := s.collection.GetByID(ctx, seqID(i))
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", seqID(i), err)
		}
		c, err := chunkFromChromem(doc.Content, doc.Metadata)
		if err != nil {
			return nil, err
		}
		c.Embedding = append([]float32(nil), doc.Embedding...)
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Count returns the number of documents in the collection.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.Count(), nil
}

// NearestNeighbors runs chromem's exact cosine search. chromem scores every document, so
// candidates does not bound it; the full ranking is taken and re-sorted so equal similarities
// keep insertion order before truncating to limit.
func (s *ChromemStore) NearestNeighbors(ctx context.Context, vector []float32, candidates, limit int) ([]ScoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// chromem requires nResults <= document count.
	n := s.collection.Count()
	if limit <= 0 || n == 0 {
		return nil, nil
	}
	// Stored documents are unit length; the query must be too for the dot product to be cosine.
	q := append([]float32(nil), vector...)
	utils.NormalizeL2(q)
	results, err := s.collection.QueryEmbedding(ctx, q, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", s.name, err)
	}
	// IDs are zero-padded sequence numbers, so string order is insertion order.
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := rank(float64(results[i].Similarity)), rank(float64(results[j].Similarity))
		if ri != rj {
			return ri > rj
		}
		return results[i].ID < results[j].ID
	})
	if limit < len(results) {
		results = results[:limit]
	}
	out := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		c, err := chunkFromChromem(r.Content, r.Metadata)
		if err != nil {
			return nil, err
		}
		c.Embedding = append([]float32(nil), r.Embedding...)
		out = append(out, ScoredChunk{Chunk: c, Similarity: float64(r.Similarity)})
	}
	return out, nil
}

// Close is a no-op; persistent chromem databases write through on every insert.
func (s *ChromemStore) Close() error {
	return nil
}

func chunkFromChromem(content string, meta map[string]string) (*models.DocumentChunk, error) {
	idx, err := strconv.Atoi(meta[metaChunkIndex])
	if err != nil {
		return nil, fmt.Errorf("corrupt chunk_index metadata %q: %w", meta[metaChunkIndex], err)
	}
	c := &models.DocumentChunk{
		ID:         meta[metaChunkID],
		Source:     meta[metaSource],
		Content:    content,
		ChunkIndex: idx,
	}
	if ts := meta[metaCreatedAt]; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			c.CreatedAt = t
		}
	}
	return c, nil
}
