package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"unicode"

	"github.com/hyperjump/taxqa/internal/prompt"
)

// APIKey is the only key the fake service accepts.
const APIKey = "test-key"

// vocabulary maps each tracked word to a vector dimension. The last dimension is a constant
// bias so no text embeds to the zero vector.
var vocabulary = func() map[string]int {
	words := []string{
		"vat", "value", "added", "supplies", "taxable",
		"company", "companies", "profits", "income", "file", "return",
		"withholding", "dividends", "deducted", "remit",
		"capital", "gains", "shares", "assets",
		"stamp", "duty", "instruments", "penalty", "receipts",
		"rate",
	}
	m := make(map[string]int, len(words))
	for i, w := range words {
		m[w] = i
	}
	return m
}()

// Dimensions is the length of every vector the fake service returns.
var Dimensions = len(vocabulary) + 1

// Embed returns the bag-of-words vector for text over the fixed vocabulary.
func Embed(text string) []float32 {
	vec := make([]float32, Dimensions)
	vec[Dimensions-1] = 0.05
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if i, ok := vocabulary[tok]; ok {
			vec[i]++
		}
	}
	return vec
}

// FakeGemini serves the embedContent and generateContent endpoints. Generation answers by
// citing the first passage of the context, or with the fallback sentence when the context is
// empty.
type FakeGemini struct {
	*httptest.Server

	mu             sync.Mutex
	prompts        []string
	embedCalls     int
	generateStatus int
}

// NewFakeGemini starts the fake service. Callers must Close it.
func NewFakeGemini() *FakeGemini {
	f := &FakeGemini{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// FailGeneration makes every generateContent call answer with status.
func (f *FakeGemini) FailGeneration(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateStatus = status
}

// Prompts returns the prompts received so far.
func (f *FakeGemini) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// EmbedCalls returns how many embedContent requests were served.
func (f *FakeGemini) EmbedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

type textPart struct {
	Text string `json:"text"`
}

type contentBody struct {
	Parts []textPart `json:"parts"`
}

func (f *FakeGemini) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("x-goog-api-key") != APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "API key not valid"}})
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, ":embedContent"):
		f.embed(w, r)
	case strings.HasSuffix(r.URL.Path, ":generateContent"):
		f.generate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeGemini) embed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content contentBody `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Content.Parts) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "bad request"}})
		return
	}
	f.mu.Lock()
	f.embedCalls++
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"embedding": map[string]any{"values": Embed(req.Content.Parts[0].Text)}})
}

func (f *FakeGemini) generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contents []contentBody `json:"contents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Contents) == 0 || len(req.Contents[0].Parts) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "bad request"}})
		return
	}
	p := req.Contents[0].Parts[0].Text

	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	status := f.generateStatus
	f.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]any{"error": map[string]any{"message": "model overloaded, project quota 1234"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": answerFor(p)}}}},
		},
	})
}

func answerFor(p string) string {
	if strings.Contains(p, prompt.EmptyContextMarker) {
		return prompt.FallbackAnswer
	}
	const label = "[SRC-1] Source: "
	i := strings.Index(p, label)
	if i < 0 {
		return prompt.FallbackAnswer
	}
	name := p[i+len(label):]
	if j := strings.IndexByte(name, '\n'); j >= 0 {
		name = name[:j]
	}
	return "The documents address this directly (Source: " + name + ")."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
