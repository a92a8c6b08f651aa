package models

import "fmt"

// GenericErrorMessage is the only failure text shown to callers of the query pipeline.
const GenericErrorMessage = "An error occurred while processing your request"

// ChatRequest is the body of a question.
type ChatRequest struct {
	Message string `json:"message"`
}

// Validate returns an error if the message is empty.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// SourceRef is one retrieved passage reported back to the caller.
// Similarity is formatted with four decimals.
type SourceRef struct {
	Source     string `json:"source"`
	Similarity string `json:"similarity"`
}

// ChatResponse is the grounded answer and the passages it was built from.
type ChatResponse struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// ErrorResponse is the body returned on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FormatSimilarity renders a similarity score the way responses carry it.
func FormatSimilarity(s float64) string {
	return fmt.Sprintf("%.4f", s)
}
