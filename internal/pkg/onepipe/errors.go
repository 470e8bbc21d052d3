package onepipe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals malformed arguments passed to a crypto primitive.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDecryptFailed signals a padding or format error while decrypting.
	ErrDecryptFailed = errors.New("decryption failed")
	// ErrMissingConfig signals an absent API key or client secret.
	ErrMissingConfig = errors.New("missing provider configuration")
	// ErrUnreachable signals that no HTTP response was obtained at all.
	ErrUnreachable = errors.New("provider unreachable")
)

// APIError is returned when the provider answers with a non-2xx status.
// The body is kept for the audit trail; callers must not echo it to end users.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API returned %d", e.StatusCode)
}
