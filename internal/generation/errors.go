package generation

import (
	"fmt"

	"github.com/hyperjump/taxqa/pkg/utils"
)

// maxBodyInError bounds how much of an upstream body is kept for logs.
const maxBodyInError = 512

// ServiceError is returned when the generative service cannot be reached or answers with a
// non-2xx status. StatusCode is 0 for transport failures. Body is for operators only.
type ServiceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("generation service unreachable: %v", e.Err)
	}
	return fmt.Sprintf("generation service returned status %d: %s", e.StatusCode, utils.Truncate(e.Body, maxBodyInError))
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsAuth reports whether the service rejected the credential.
func (e *ServiceError) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// MalformedResponseError is returned when a 2xx response lacks the expected structure.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed generation response: " + e.Reason
}
