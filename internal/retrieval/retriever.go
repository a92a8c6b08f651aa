package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/taxqa/internal/config"
	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/internal/store"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// Error is returned when the chunk store cannot serve a retrieval.
type Error struct {
	Strategy string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieval (%s) failed: %v", e.Strategy, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retriever returns the top-K chunks for a query vector using either an in-process cosine
// scan (exhaustive) or the store's native nearest-neighbour search (indexed).
type Retriever struct {
	store      store.ChunkStore
	nn         store.NearestNeighborSearcher
	strategy   string
	topK       int
	candidates int
	logger     *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger used for retrieval diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = l
	}
}

// New creates a retriever over s. The indexed strategy requires s to implement
// store.NearestNeighborSearcher.
func New(s store.ChunkStore, cfg config.RetrievalConfig, opts ...Option) (*Retriever, error) {
	r := &Retriever{
		store:      s,
		strategy:   cfg.Strategy,
		topK:       cfg.TopK,
		candidates: cfg.Candidates,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	if r.strategy == "" {
		r.strategy = config.StrategyExhaustive
	}
	if r.topK <= 0 {
		r.topK = config.DefaultTopK
	}
	if r.candidates < r.topK {
		r.candidates = r.topK
	}
	switch r.strategy {
	case config.StrategyExhaustive:
	case config.StrategyIndexed:
		if !store.SupportsNearestNeighbors(s) {
			return nil, fmt.Errorf("indexed retrieval on %T: %w", s, store.ErrNearestNeighborsUnsupported)
		}
		r.nn = s.(store.NearestNeighborSearcher)
	default:
		return nil, fmt.Errorf("unknown retrieval strategy: %s", r.strategy)
	}
	return r, nil
}

// Strategy returns the active strategy name.
func (r *Retriever) Strategy() string {
	return r.strategy
}

// TopK returns the maximum number of results per query.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve returns at most TopK chunks ordered by descending similarity. An empty store
// yields an empty result, not an error. Citation identifiers are left unset.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32) ([]models.RetrievedChunk, error) {
	var (
		results []models.RetrievedChunk
		err     error
	)
	if r.nn != nil {
		results, err = r.indexed(ctx, vector)
	} else {
		results, err = r.exhaustive(ctx, vector)
	}
	if err != nil {
		return nil, &Error{Strategy: r.strategy, Err: err}
	}
	results = rankTopK(results, r.topK)
	r.logger.Debug("Retrieved chunks",
		zap.String("strategy", r.strategy),
		zap.Int("results", len(results)))
	return results, nil
}

func (r *Retriever) exhaustive(ctx context.Context, vector []float32) ([]models.RetrievedChunk, error) {
	chunks, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]models.RetrievedChunk, len(chunks))
	for i, c := range chunks {
		results[i] = models.RetrievedChunk{Chunk: c, Similarity: CosineSimilarity(vector, c.Embedding)}
	}
	return results, nil
}

func (r *Retriever) indexed(ctx context.Context, vector []float32) ([]models.RetrievedChunk, error) {
	hits, err := r.nn.NearestNeighbors(ctx, vector, r.candidates, r.topK)
	if err != nil {
		return nil, err
	}
	results := make([]models.RetrievedChunk, len(hits))
	for i, h := range hits {
		results[i] = models.RetrievedChunk{Chunk: h.Chunk, Similarity: h.Similarity}
	}
	return results, nil
}
