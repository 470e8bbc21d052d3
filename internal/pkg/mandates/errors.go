package mandates

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals that the user has no matching mandate.
	ErrNotFound = errors.New("no mandate found for this user")
	// ErrMissingReference signals a cancellation without a provider key.
	ErrMissingReference = errors.New("mandate has no provider reference")
	// ErrProvider is the caller-visible "upstream unavailable" category for
	// transport failures and non-2xx provider responses. The raw provider
	// detail lives on the persisted mandate, not in this error.
	ErrProvider = errors.New("mandate service temporarily unavailable")
	// ErrInvalidTransition signals an explicit transition request against a
	// terminal mandate.
	ErrInvalidTransition = errors.New("mandate cannot transition from its current status")
)

// PreconditionError lists the business preconditions a mandate creation
// failed before any provider call was made.
type PreconditionError struct {
	Reason  string
	Missing []string
}

func (e *PreconditionError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing %s", e.Reason, strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// RejectedError reports a create call the provider answered but did not
// accept. The mandate row was still persisted (as FAILED) for the audit
// trail; the caller sees the rejection.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return "provider rejected mandate creation: " + e.Message
}
