package embedding

import (
	"errors"
	"fmt"

	"github.com/hyperjump/taxqa/pkg/utils"
)

// ErrorKind classifies embedding service failures.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindAuth      ErrorKind = "auth"
	KindUpstream  ErrorKind = "upstream"
	KindMalformed ErrorKind = "malformed"
)

// ErrEmptyEmbedding is wrapped when the service answers without a vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// ErrZeroEmbedding is wrapped when the service returns a vector with zero magnitude, which has
// no defined cosine similarity.
var ErrZeroEmbedding = errors.New("zero-magnitude embedding")

// ServiceError is returned for any failure of the embedding service.
type ServiceError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding service %s: %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding service %s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// checkVector validates a vector returned by a provider against the expected dimension.
func checkVector(provider string, vec []float32, dims int) error {
	if len(vec) == 0 {
		return &ServiceError{Provider: provider, Kind: KindMalformed, Err: ErrEmptyEmbedding}
	}
	if dims > 0 && len(vec) != dims {
		return &ServiceError{
			Provider: provider,
			Kind:     KindMalformed,
			Err:      fmt.Errorf("dimension mismatch: got %d, expected %d", len(vec), dims),
		}
	}
	if utils.L2Norm(vec) == 0 {
		return &ServiceError{Provider: provider, Kind: KindMalformed, Err: ErrZeroEmbedding}
	}
	return nil
}
