// Package ingest rebuilds the chunk store from a document corpus: extract, chunk, embed, store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/taxqa/internal/embedding"
	"github.com/hyperjump/taxqa/internal/extract"
	"github.com/hyperjump/taxqa/internal/store"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// State is the position of a document in the ingestion state machine.
type State string

const (
	StateExtracting State = "extracting"
	StateChunking   State = "chunking"
	StateEmbedding  State = "embedding"
	StateStored     State = "stored"
	StateSkipped    State = "skipped"
	StateFailed     State = "failed"
)

// TextExtractor turns a document file into text. *extract.Extractor implements it.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// DocumentResult is the terminal outcome for one document.
type DocumentResult struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	State  State  `json:"state"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

// Report summarizes an ingestion run.
type Report struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Documents  []DocumentResult `json:"documents"`
	Stored     int              `json:"stored"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Chunks     int              `json:"chunks"`
}

func (r *Report) add(d DocumentResult) {
	r.Documents = append(r.Documents, d)
	switch d.State {
	case StateStored:
		r.Stored++
		r.Chunks += d.Chunks
	case StateSkipped:
		r.Skipped++
	case StateFailed:
		r.Failed++
	}
}

// Ingester drives Extractor → Chunker → Embedder → ChunkStore over a batch of documents.
// Documents are processed one at a time and chunks are embedded one at a time.
type Ingester struct {
	store     store.ChunkStore
	embedder  embedding.Embedder
	extractor TextExtractor
	chunker   *Chunker
	limiter   *rate.Limiter
	root      string
	logger    *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger for state transitions and the run summary.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// WithEmbedDelay sets a fixed minimum interval between embedding calls. A non-positive
// delay disables pacing.
func WithEmbedDelay(d time.Duration) Option {
	return func(in *Ingester) {
		if d <= 0 {
			in.limiter = nil
			return
		}
		in.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithSourceRoot names sources by their path relative to root instead of their base name.
func WithSourceRoot(root string) Option {
	return func(in *Ingester) {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		in.root = root
	}
}

// New creates an ingester. chunkSize is in words.
func New(s store.ChunkStore, emb embedding.Embedder, ext TextExtractor, chunkSize int, opts ...Option) *Ingester {
	in := &Ingester{
		store:     s,
		embedder:  emb,
		extractor: ext,
		chunker:   NewChunker(chunkSize),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = utils.OrNop(in.logger)
	return in
}

// Run clears the store and ingests paths in order. A failure to clear the store is fatal and
// returned as an error; per-document failures are recorded in the report and the run goes on.
// A cancelled context stops the run after the current document and returns the partial report
// together with the context error.
func (in *Ingester) Run(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), StartedAt: time.Now()}
	log := in.logger.With(zap.String("run_id", report.RunID))
	log.Info("Starting ingestion", zap.Int("documents", len(paths)), zap.Int("chunk_size", in.chunker.Size()))

	if err := in.store.DeleteAll(ctx); err != nil {
		log.Error("Failed to clear chunk store", zap.Error(err))
		return nil, fmt.Errorf("clear chunk store: %w", err)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			return report, err
		}
		report.add(in.ingestDocument(ctx, log, path))
	}

	report.FinishedAt = time.Now()
	log.Info("Ingestion finished",
		zap.Int("stored", report.Stored),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("chunks", report.Chunks),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (in *Ingester) ingestDocument(ctx context.Context, log *zap.Logger, path string) DocumentResult {
	res := DocumentResult{Path: path, Source: in.sourceName(path)}
	log = log.With(zap.String("source", res.Source))
	transition := func(s State) {
		res.State = s
		log.Debug("Document state", zap.String("state", string(s)))
	}
	fail := func(stage string, err error) DocumentResult {
		res.Error = fmt.Sprintf("%s: %v", stage, err)
		res.Chunks = 0
		transition(StateFailed)
		log.Error("Document failed", zap.String("stage", stage), zap.Error(err))
		return res
	}
	skip := func(reason string) DocumentResult {
		res.Error = reason
		transition(StateSkipped)
		log.Warn("Document skipped", zap.String("reason", reason))
		return res
	}

	transition(StateExtracting)
	text, err := in.extractor.Extract(path)
	if errors.Is(err, extract.ErrNoText) {
		return skip("no extractable text")
	}
	if err != nil {
		return fail("extract", err)
	}

	transition(StateChunking)
	chunks := in.chunker.Chunk(res.Source, text)
	if len(chunks) == 0 {
		return skip("no chunks produced")
	}

	// All vectors are computed before anything is written so a failure leaves no partial document.
	transition(StateEmbedding)
	for i, c := range chunks {
		if in.limiter != nil {
			if err := in.limiter.Wait(ctx); err != nil {
				return fail("embed", err)
			}
		}
		vec, err := in.embedder.Embed(ctx, c.Content)
		if err != nil {
			return fail(fmt.Sprintf("embed chunk %d", i), err)
		}
		c.Embedding = vec
		log.Debug("Embedded chunk", zap.Int("chunk_index", i), zap.Int("of", len(chunks)))
	}

	if err := in.store.Insert(ctx, chunks...); err != nil {
		return fail("store", err)
	}
	res.Chunks = len(chunks)
	transition(StateStored)
	return res
}

// sourceName is the document identity stored on every chunk.
func (in *Ingester) sourceName(path string) string {
	if in.root != "" {
		abs, _ := filepath.Abs(path)
		if rel, err := filepath.Rel(in.root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}

