package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newGeminiServer(t *testing.T, status int, body string) (*httptest.Server, *embedContentRequest) {
	t.Helper()
	var got embedContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/text-embedding-004:embedContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newTestGemini(t *testing.T, url string, dims int) *GeminiEmbedder {
	t.Helper()
	e, err := NewGeminiEmbedder(GeminiConfig{BaseURL: url, APIKey: "k", Model: "text-embedding-004", Dimensions: dims})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestGeminiEmbedder_success(t *testing.T) {
	srv, req := newGeminiServer(t, http.StatusOK, `{"embedding":{"values":[0.1,0.2,0.3]}}`)
	e := newTestGemini(t, srv.URL, 0)

	vec, err := e.Embed(context.Background(), "What is VAT?")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("vec = %v", vec)
	}
	if req.Model != "models/text-embedding-004" || req.Content.Parts[0].Text != "What is VAT?" {
		t.Errorf("request = %+v", req)
	}
	if e.Dimensions() != 3 {
		t.Errorf("Dimensions = %d, want fixed by first response", e.Dimensions())
	}
}

func TestGeminiEmbedder_errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		dims   int
		want   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{}}`, 0, KindAuth},
		{"forbidden", http.StatusForbidden, `{}`, 0, KindAuth},
		{"server error", http.StatusInternalServerError, `boom`, 0, KindUpstream},
		{"rate limited", http.StatusTooManyRequests, `slow down`, 0, KindUpstream},
		{"empty values", http.StatusOK, `{"embedding":{"values":[]}}`, 0, KindMalformed},
		{"missing embedding", http.StatusOK, `{}`, 0, KindMalformed},
		{"not json", http.StatusOK, `<html>`, 0, KindMalformed},
		{"dimension mismatch", http.StatusOK, `{"embedding":{"values":[1,2]}}`, 3, KindMalformed},
		{"zero vector", http.StatusOK, `{"embedding":{"values":[0,0,0]}}`, 0, KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGeminiServer(t, tt.status, tt.body)
			e := newTestGemini(t, srv.URL, tt.dims)
			vec, err := e.Embed(context.Background(), "x")
			if vec != nil {
				t.Errorf("expected nil vector, got %v", vec)
			}
			var se *ServiceError
			if !errors.As(err, &se) {
				t.Fatalf("expected *ServiceError, got %v", err)
			}
			if se.Kind != tt.want {
				t.Errorf("kind = %s, want %s", se.Kind, tt.want)
			}
		})
	}
}

func TestGeminiEmbedder_transportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	e := newTestGemini(t, url, 0)
	_, err := e.Embed(context.Background(), "x")
	var se *ServiceError
	if !errors.As(err, &se) || se.Kind != KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewGeminiEmbedder_missingKey(t *testing.T) {
	if _, err := NewGeminiEmbedder(GeminiConfig{Model: "m"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
	if _, err := NewGeminiEmbedder(GeminiConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestCheckVector_zeroMagnitude(t *testing.T) {
	if err := checkVector("test", []float32{0, 0, 0}, 3); !errors.Is(err, ErrZeroEmbedding) {
		t.Errorf("expected ErrZeroEmbedding, got %v", err)
	}
	if err := checkVector("test", []float32{0, 0.1, 0}, 3); err != nil {
		t.Errorf("non-zero vector rejected: %v", err)
	}
}
