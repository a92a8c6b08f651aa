// Package query answers one question: embed, retrieve, assemble context, prompt, generate.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/taxqa/internal/citation"
	"github.com/hyperjump/taxqa/internal/embedding"
	"github.com/hyperjump/taxqa/internal/generation"
	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/internal/prompt"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageEmbed    Stage = "embed"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
)

// ErrEmptyMessage is returned before the pipeline runs when the question is blank.
var ErrEmptyMessage = errors.New("message cannot be empty")

// StageError is returned for any failure inside the pipeline. Its cause has already been
// logged; callers show models.GenericErrorMessage instead of Error().
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Retriever returns the top-ranked chunks for a query vector.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32) ([]models.RetrievedChunk, error)
}

// Engine runs the query pipeline. It holds no per-query state, so one Engine serves
// concurrent requests.
type Engine struct {
	embedder  embedding.Embedder
	retriever Retriever
	generator generation.Generator
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for pipeline failures and timings.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a query engine with the given dependencies.
func NewEngine(embedder embedding.Embedder, retriever Retriever, generator generation.Generator, opts ...Option) *Engine {
	e := &Engine{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Answer runs the pipeline for message. Each step starts only after the previous one
// succeeded; the first failure is logged and returned as a *StageError.
func (e *Engine) Answer(ctx context.Context, message string) (*models.ChatResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	start := time.Now()

	vector, err := e.embedder.Embed(ctx, message)
	if err != nil {
		return nil, e.fail(StageEmbed, err)
	}

	results, err := e.retriever.Retrieve(ctx, vector)
	if err != nil {
		return nil, e.fail(StageRetrieve, err)
	}

	assembled := citation.Assemble(results)
	p := prompt.Build(prompt.Input{
		Context:  assembled.Block,
		Question: message,
		Sources:  assembled.Sources.DistinctNames(),
	})

	answer, err := e.generator.Generate(ctx, p)
	if err != nil {
		return nil, e.fail(StageGenerate, err)
	}

	resp := &models.ChatResponse{
		Answer:  answer,
		Sources: make([]models.SourceRef, 0, len(assembled.Chunks)),
	}
	for _, c := range assembled.Chunks {
		name, _ := assembled.Sources.Lookup(c.CitationID)
		resp.Sources = append(resp.Sources, models.SourceRef{
			Source:     name,
			Similarity: models.FormatSimilarity(c.Similarity),
		})
	}
	e.logger.Debug("Answered query",
		zap.Int("retrieved", len(results)),
		zap.Int("prompt_bytes", len(p)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

func (e *Engine) fail(stage Stage, err error) error {
	fields := []zap.Field{zap.String("stage", string(stage)), zap.Error(err)}
	var se *generation.ServiceError
	if errors.As(err, &se) && se.StatusCode != 0 {
		fields = append(fields,
			zap.Int("upstream_status", se.StatusCode),
			zap.String("upstream_body", utils.Truncate(se.Body, 512)),
			zap.Bool("auth_rejected", se.IsAuth()))
	}
	var ee *embedding.ServiceError
	if errors.As(err, &ee) {
		fields = append(fields, zap.String("embedding_error", string(ee.Kind)))
		if ee.StatusCode != 0 {
			fields = append(fields, zap.Int("upstream_status", ee.StatusCode))
		}
	}
	e.logger.Error("Query pipeline failed", fields...)
	return &StageError{Stage: stage, Err: err}
}
