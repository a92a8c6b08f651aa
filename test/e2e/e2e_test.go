package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hyperjump/taxqa/internal/config"
	"github.com/hyperjump/taxqa/internal/embedding"
	"github.com/hyperjump/taxqa/internal/extract"
	"github.com/hyperjump/taxqa/internal/generation"
	"github.com/hyperjump/taxqa/internal/ingest"
	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/internal/prompt"
	"github.com/hyperjump/taxqa/internal/query"
	"github.com/hyperjump/taxqa/internal/retrieval"
	"github.com/hyperjump/taxqa/internal/server"
	"github.com/hyperjump/taxqa/internal/store"
)

// pipeline is one fully wired system over a temporary data directory.
type pipeline struct {
	cfg      *config.Config
	store    store.ChunkStore
	embedder *embedding.GeminiEmbedder
	engine   *query.Engine
	ingester *ingest.Ingester
}

func newConfig(t *testing.T, gemini *FakeGemini, backend, strategy string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.Backend = backend
	cfg.Storage.DatabasePath = filepath.Join(dir, "chunks.db")
	cfg.Storage.ChromemPath = filepath.Join(dir, "chromem")
	cfg.Retrieval.Strategy = strategy
	cfg.Embedding.BaseURL = gemini.URL
	cfg.Embedding.APIKey = APIKey
	cfg.Generation.BaseURL = gemini.URL
	cfg.Generation.APIKey = APIKey
	cfg.Ingest.EmbedDelay = -1
	require.NoError(t, cfg.Validate())
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config) *pipeline {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	s, err := store.New(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	emb, err := embedding.NewGeminiEmbedder(embedding.GeminiConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = emb.Close() })

	r, err := retrieval.New(s, cfg.Retrieval, retrieval.WithLogger(logger))
	require.NoError(t, err)

	gen, err := generation.NewGeminiClient(generation.Config{
		BaseURL: cfg.Generation.BaseURL,
		APIKey:  cfg.Generation.APIKey,
		Model:   cfg.Generation.Model,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gen.Close() })

	return &pipeline{
		cfg:      cfg,
		store:    s,
		embedder: emb,
		engine:   query.NewEngine(emb, r, gen, query.WithLogger(logger)),
		ingester: ingest.New(s, emb, extract.NewExtractor(), cfg.Ingest.ChunkSize,
			ingest.WithLogger(logger),
			ingest.WithEmbedDelay(cfg.Ingest.EmbedDelay),
			ingest.WithSourceRoot(cfg.Ingest.Directory),
		),
	}
}

func writeCorpus(t *testing.T, cfg *config.Config, c *Corpus) []string {
	t.Helper()
	cfg.Ingest.Directory = t.TempDir()
	require.NoError(t, WriteCorpus(cfg.Ingest.Directory, c))
	paths, err := ingest.CollectFiles(cfg.Ingest.Directory, Extensions)
	require.NoError(t, err)
	return paths
}

func TestE2E_IngestReport(t *testing.T) {
	gemini := NewFakeGemini()
	defer gemini.Close()
	corpus := BuildCorpus()
	cfg := newConfig(t, gemini, config.BackendSQLite, config.StrategyExhaustive)
	cfg.Ingest.ChunkSize = 12
	paths := writeCorpus(t, cfg, corpus)
	require.Len(t, paths, len(corpus.Documents)+len(corpus.Skipped)+len(corpus.Broken))
	p := newPipeline(t, cfg)

	report, err := p.ingester.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, len(corpus.Documents), report.Stored)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)

	states := map[string]ingest.State{}
	for _, d := range report.Documents {
		states[d.Source] = d.State
		if d.State == ingest.StateStored {
			assert.Greater(t, d.Chunks, 1, "%s should split at 12 words", d.Source)
		}
	}
	assert.Equal(t, ingest.StateStored, states["rules/StampDuties.txt"])
	assert.Equal(t, ingest.StateStored, states["CapitalGainsTax.xlsx"])
	assert.Equal(t, ingest.StateSkipped, states["blank.txt"])
	assert.Equal(t, ingest.StateFailed, states["broken.docx"])

	n, err := p.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Chunks, n)
	assert.Equal(t, report.Chunks, gemini.EmbedCalls())

	// Re-ingesting the same corpus replaces rather than appends.
	again, err := p.ingester.Run(context.Background(), paths)
	require.NoError(t, err)
	n, err = p.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, again.Chunks, n)
	assert.Equal(t, report.Chunks, again.Chunks)
}

func TestE2E_AnswersCiteTheRightSource(t *testing.T) {
	backends := []struct {
		backend  string
		strategy string
	}{
		{config.BackendSQLite, config.StrategyExhaustive},
		{config.BackendMemory, config.StrategyExhaustive},
		{config.BackendMemory, config.StrategyIndexed},
		{config.BackendChromem, config.StrategyExhaustive},
		{config.BackendChromem, config.StrategyIndexed},
	}
	corpus := BuildCorpus()
	for _, b := range backends {
		t.Run(b.backend+"/"+b.strategy, func(t *testing.T) {
			gemini := NewFakeGemini()
			defer gemini.Close()
			cfg := newConfig(t, gemini, b.backend, b.strategy)
			paths := writeCorpus(t, cfg, corpus)
			p := newPipeline(t, cfg)
			_, err := p.ingester.Run(context.Background(), paths)
			require.NoError(t, err)

			for _, q := range corpus.Questions {
				resp, err := p.engine.Answer(context.Background(), q.Question)
				require.NoError(t, err, q.Question)
				require.NotEmpty(t, resp.Sources, q.Question)
				assert.Equal(t, q.ExpectedSource, resp.Sources[0].Source, q.Question)
				assert.Contains(t, resp.Answer, "(Source: "+q.ExpectedSource+")")
				assert.LessOrEqual(t, len(resp.Sources), cfg.Retrieval.TopK)
				for i := 1; i < len(resp.Sources); i++ {
					assert.GreaterOrEqual(t, resp.Sources[i-1].Similarity, resp.Sources[i].Similarity,
						"sources must be in rank order")
				}
				for _, s := range resp.Sources {
					assert.NotContains(t, s.Source, "SRC-")
					assert.NotContains(t, s.Source, ".")
				}
			}

			prompts := gemini.Prompts()
			require.Len(t, prompts, len(corpus.Questions))
			assert.Contains(t, prompts[0], "   - VAT_Act_2023\n")
			assert.Contains(t, prompts[0], "[SRC-1] Source: VAT_Act_2023\n")
		})
	}
}

func TestE2E_StrategiesAgree(t *testing.T) {
	corpus := BuildCorpus()
	ranked := func(backend, strategy string) [][]string {
		gemini := NewFakeGemini()
		defer gemini.Close()
		cfg := newConfig(t, gemini, backend, strategy)
		paths := writeCorpus(t, cfg, corpus)
		p := newPipeline(t, cfg)
		_, err := p.ingester.Run(context.Background(), paths)
		require.NoError(t, err)
		var out [][]string
		for _, q := range corpus.Questions {
			resp, err := p.engine.Answer(context.Background(), q.Question)
			require.NoError(t, err)
			var names []string
			for _, s := range resp.Sources {
				names = append(names, s.Source)
			}
			out = append(out, names)
		}
		return out
	}
	assert.Equal(t,
		ranked(config.BackendSQLite, config.StrategyExhaustive),
		ranked(config.BackendChromem, config.StrategyIndexed))
}

func TestE2E_EmptyStoreFallsBack(t *testing.T) {
	gemini := NewFakeGemini()
	defer gemini.Close()
	p := newPipeline(t, newConfig(t, gemini, config.BackendSQLite, config.StrategyExhaustive))

	resp, err := p.engine.Answer(context.Background(), "What is the VAT rate?")
	require.NoError(t, err)
	assert.Equal(t, prompt.FallbackAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)

	prompts := gemini.Prompts()
	require.Len(t, prompts, 1, "generation runs even without context")
	assert.Contains(t, prompts[0], prompt.EmptyContextMarker)
}

func TestE2E_HTTPChat(t *testing.T) {
	gemini := NewFakeGemini()
	defer gemini.Close()
	corpus := BuildCorpus()
	cfg := newConfig(t, gemini, config.BackendSQLite, config.StrategyExhaustive)
	paths := writeCorpus(t, cfg, corpus)
	p := newPipeline(t, cfg)
	_, err := p.ingester.Run(context.Background(), paths)
	require.NoError(t, err)

	ts := httptest.NewServer(server.NewServer(p.engine, p.store, cfg, zaptest.NewLogger(t)).Handler())
	defer ts.Close()

	post := func(body string) (*http.Response, []byte) {
		resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		return resp, raw
	}

	resp, raw := post(`{"message":"What withholding tax rate applies to dividends?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var chat models.ChatResponse
	require.NoError(t, json.Unmarshal(raw, &chat))
	require.NotEmpty(t, chat.Sources)
	assert.Equal(t, "WithholdingTax", chat.Sources[0].Source)
	assert.Regexp(t, `^-?\d+\.\d{4}$`, chat.Sources[0].Similarity)

	resp, raw = post(`{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))

	gemini.FailGeneration(http.StatusInternalServerError)
	resp, raw = post(`{"message":"What is the VAT rate?"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var e models.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, models.GenericErrorMessage, e.Error)
	assert.NotContains(t, string(raw), "quota")

	status, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer status.Body.Close()
	var st server.StatusResponse
	require.NoError(t, json.NewDecoder(status.Body).Decode(&st))
	n, err := p.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n, st.Chunks)
}

func TestE2E_BadCredentialFailsQuery(t *testing.T) {
	gemini := NewFakeGemini()
	defer gemini.Close()
	cfg := newConfig(t, gemini, config.BackendMemory, config.StrategyExhaustive)
	cfg.Embedding.APIKey = "wrong"
	p := newPipeline(t, cfg)

	_, err := p.engine.Answer(context.Background(), "What is VAT?")
	var se *query.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, query.StageEmbed, se.Stage)
	var ee *embedding.ServiceError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, embedding.KindAuth, ee.Kind)
	assert.Empty(t, gemini.Prompts())
}
