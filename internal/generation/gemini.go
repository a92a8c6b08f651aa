// Package generation sends prompts to the external generative model and extracts the answer.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generator turns a prompt into answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config configures the Gemini generateContent client.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

// GeminiClient calls the Gemini generateContent REST endpoint. It performs no retries.
type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	genCfg  generationConfig
	client  *http.Client
}

// NewGeminiClient returns a client for cfg.
func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation client: missing API key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("generation client: missing model")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   strings.TrimPrefix(cfg.Model, "models/"),
		genCfg: generationConfig{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
		client: &http.Client{Timeout: timeout},
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// Generate sends prompt as a single user turn and returns the first candidate's first text part.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: c.genCfg,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &ServiceError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ServiceError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ServiceError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ServiceError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	return parseAnswer(payload)
}

func parseAnswer(payload []byte) (string, error) {
	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", &MalformedResponseError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if len(out.Candidates) == 0 {
		return "", &MalformedResponseError{Reason: "no candidates"}
	}
	first := out.Candidates[0].Content
	if first == nil || len(first.Parts) == 0 {
		return "", &MalformedResponseError{Reason: "first candidate has no content parts"}
	}
	return first.Parts[0].Text, nil
}

// Close releases idle connections.
func (c *GeminiClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
