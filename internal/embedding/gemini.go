package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const providerGemini = "gemini"

// GeminiConfig configures the Gemini embedContent client.
type GeminiConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// GeminiEmbedder calls the Gemini embedContent REST endpoint, one text per request.
type GeminiEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	mu         sync.Mutex
	dimensions int
}

// NewGeminiEmbedder returns an embedder for cfg. An empty API key is an error because every
// request would fail authentication.
func NewGeminiEmbedder(cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedder: missing API key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini embedder: missing model")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GeminiEmbedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      strings.TrimPrefix(cfg.Model, "models/"),
		client:     &http.Client{Timeout: timeout},
		dimensions: cfg.Dimensions,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type embedContentRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type embedContentResponse struct {
	Embedding *struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding for text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedContentRequest{
		Model:   "models/" + e.model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	})
	if err != nil {
		return nil, &ServiceError{Provider: providerGemini, Kind: KindMalformed, Err: err}
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Provider: providerGemini, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &ServiceError{Provider: providerGemini, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Provider: providerGemini, Kind: KindTransport, StatusCode: resp.StatusCode, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ServiceError{Provider: providerGemini, Kind: KindAuth, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &ServiceError{Provider: providerGemini, Kind: KindUpstream, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(payload)))}
	}

	var out embedContentResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &ServiceError{Provider: providerGemini, Kind: KindMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Embedding == nil {
		return nil, &ServiceError{Provider: providerGemini, Kind: KindMalformed, StatusCode: resp.StatusCode, Err: ErrEmptyEmbedding}
	}
	vec := out.Embedding.Values

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := checkVector(providerGemini, vec, e.dimensions); err != nil {
		return nil, err
	}
	if e.dimensions == 0 {
		e.dimensions = len(vec)
	}
	return vec, nil
}

// Dimensions returns the vector length, fixed by configuration or the first response.
func (e *GeminiEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// Close releases idle connections.
func (e *GeminiEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
