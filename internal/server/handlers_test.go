package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/taxqa/internal/config"
	"github.com/hyperjump/taxqa/internal/embedding"
	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/internal/query"
	"github.com/hyperjump/taxqa/internal/retrieval"
	"github.com/hyperjump/taxqa/internal/store"
)

type fakeAnswerer struct {
	resp     *models.ChatResponse
	err      error
	messages []string
}

func (f *fakeAnswerer) Answer(ctx context.Context, message string) (*models.ChatResponse, error) {
	f.messages = append(f.messages, message)
	return f.resp, f.err
}

type fakeGenerator struct{ answer string }

func (g fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.answer, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.Backend = config.BackendMemory
	return cfg
}

func newTestServer(t *testing.T, a Answerer, s store.ChunkStore) *Server {
	t.Helper()
	if s == nil {
		s = store.NewMemoryStore(0)
	}
	return NewServer(a, s, testConfig(t), nil)
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out.Error
}

func TestHandleChat_success(t *testing.T) {
	a := &fakeAnswerer{resp: &models.ChatResponse{
		Answer:  "VAT is 7.5% (Source: TaxAct).",
		Sources: []models.SourceRef{{Source: "TaxAct", Similarity: "0.9132"}},
	}}
	w := postChat(t, newTestServer(t, a, nil), `{"message":"What is the VAT rate?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}
	var out models.ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != a.resp.Answer || len(out.Sources) != 1 || out.Sources[0].Similarity != "0.9132" {
		t.Errorf("unexpected response %+v", out)
	}
	if len(a.messages) != 1 || a.messages[0] != "What is the VAT rate?" {
		t.Errorf("answerer got %v", a.messages)
	}
}

func TestHandleChat_badRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"message":`},
		{"empty message", `{"message":""}`},
		{"missing message", `{}`},
		{"blank message", `{"message":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnswerer{err: query.ErrEmptyMessage}
			w := postChat(t, newTestServer(t, a, nil), tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d", w.Code)
			}
			if msg := decodeError(t, w); msg == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestHandleChat_pipelineFailureIsGeneric(t *testing.T) {
	a := &fakeAnswerer{err: &query.StageError{
		Stage: query.StageGenerate,
		Err:   errors.New("generation service returned status 500: quota exhausted for project 1234"),
	}}
	w := postChat(t, newTestServer(t, a, nil), `{"message":"What is VAT?"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != models.GenericErrorMessage {
		t.Errorf("error: got %q", msg)
	}
}

func TestHandleChat_methodNotAllowed(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	w := httptest.NewRecorder()
	newTestServer(t, &fakeAnswerer{}, nil).Handler().ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleChat_withEngine(t *testing.T) {
	s := store.NewMemoryStore(0)
	err := s.Insert(context.Background(), &models.DocumentChunk{
		ID: "t#0", Source: "TaxAct.pdf", Content: "VAT is 7.5%", Embedding: []float32{1, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	r, err := retrieval.New(s, config.RetrievalConfig{Strategy: config.StrategyExhaustive, TopK: 5, Candidates: 50})
	if err != nil {
		t.Fatal(err)
	}
	emb := &embedding.StaticEmbedder{Vectors: map[string][]float32{"What is VAT?": {1, 0}}}
	engine := query.NewEngine(emb, r, fakeGenerator{answer: "VAT is 7.5% (Source: TaxAct)."})

	w := postChat(t, newTestServer(t, engine, s), `{"message":"What is VAT?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out models.ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	want := []models.SourceRef{{Source: "TaxAct", Similarity: "1.0000"}}
	if len(out.Sources) != 1 || out.Sources[0] != want[0] {
		t.Errorf("sources: got %+v, want %+v", out.Sources, want)
	}
}

func TestHandleHealth(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	newTestServer(t, &fakeAnswerer{}, nil).Handler().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"status":"ok"`)) {
		t.Errorf("body: %s", w.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.DatabasePath = filepath.Join(dir, "chunks.db")
	s, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	err = s.Insert(context.Background(),
		&models.DocumentChunk{ID: "a#0", Source: "a.pdf", Content: "one", Embedding: []float32{1, 0}},
		&models.DocumentChunk{ID: "a#1", Source: "a.pdf", Content: "two", ChunkIndex: 1, Embedding: []float32{0, 1}},
	)
	if err != nil {
		t.Fatal(err)
	}

	srv := NewServer(&fakeAnswerer{}, s, cfg, nil)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Chunks != 2 {
		t.Errorf("chunks: got %d", out.Chunks)
	}
	if out.Backend != config.BackendSQLite || out.Strategy != config.StrategyExhaustive {
		t.Errorf("backend/strategy: got %q/%q", out.Backend, out.Strategy)
	}
	if out.DiskUsageBytes == nil || *out.DiskUsageBytes <= 0 {
		t.Errorf("disk usage: got %v", out.DiskUsageBytes)
	}
}

type brokenStore struct{ store.ChunkStore }

func (brokenStore) Count(context.Context) (int, error) { return 0, errors.New("connection refused") }

func TestHandleStatus_storeError(t *testing.T) {
	srv := newTestServer(t, &fakeAnswerer{}, brokenStore{store.NewMemoryStore(0)})
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != models.GenericErrorMessage {
		t.Errorf("error: got %q", msg)
	}
}
