package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
)

// Kind classifies a generation failure for retry decisions.
type Kind int

const (
	// KindUnknown is an unclassified failure. Treated as permanent.
	KindUnknown Kind = iota

	// KindThrottled indicates the resource pushed back (rate limit,
	// overload). Transient.
	KindThrottled

	// KindTimeout indicates the call exceeded its wall-clock budget.
	// Transient.
	KindTimeout

	// KindAuthInvalid indicates a rejected or missing credential.
	// Permanent.
	KindAuthInvalid

	// KindMalformed indicates the request itself was rejected as invalid.
	// Permanent.
	KindMalformed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindThrottled:
		return "throttled"
	case KindTimeout:
		return "timeout"
	case KindAuthInvalid:
		return "auth_invalid"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a classified generation failure.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Transient reports whether a retry may help.
	Transient bool

	// Attempts is how many attempts were made before giving up.
	Attempts int

	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("generation failed (%s, attempts: %d): %v", e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ConfigError reports an invalid gateway or client configuration.
// Fatal at startup, never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "llm config: " + e.Reason
}

// Classify maps an underlying error to a failure kind and whether it is
// worth retrying.
func Classify(err error) (Kind, bool) {
	if err == nil {
		return KindUnknown, false
	}

	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind, genErr.Transient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	if errors.Is(err, context.Canceled) {
		// Caller gave up; retrying on their behalf is wrong.
		return KindUnknown, false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return KindThrottled, true
		case 401, 403:
			return KindAuthInvalid, false
		case 400, 404, 422:
			return KindMalformed, false
		default:
			if apiErr.StatusCode >= 500 {
				// Server-side trouble is usually temporary.
				return KindThrottled, true
			}
			return KindUnknown, false
		}
	}

	// Unclassified errors are permanent (fail safe).
	return KindUnknown, false
}

// classified wraps err as *Error unless it already is one.
func classified(err error, attempts int) error {
	if err == nil {
		return nil
	}
	var genErr *Error
	if errors.As(err, &genErr) {
		genErr.Attempts = attempts
		return genErr
	}
	kind, transient := Classify(err)
	return &Error{Kind: kind, Transient: transient, Attempts: attempts, Err: err}
}
