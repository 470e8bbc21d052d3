package verification

import "errors"

var (
	// ErrNoProfile signals the user has no profile row to submit.
	ErrNoProfile = errors.New("profile does not exist")
	// ErrDraftIncomplete signals that a submit was attempted without both
	// draft sections present.
	ErrDraftIncomplete = errors.New("both personal and bank information are required")
	// ErrService is the generic gateway-error category for provider transport
	// failures and non-2xx responses. Raw provider bodies stay in the audit
	// trail, never in this error.
	ErrService = errors.New("verification service temporarily unavailable")
)

// RejectedError means the provider responded but the ownership check did not
// pass. The message is safe to show to the end user.
type RejectedError struct {
	Message  string
	Response any
}

func (e *RejectedError) Error() string { return e.Message }
