package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch package.
var (
	// ErrValidation is returned when input is rejected before any network call.
	ErrValidation = errors.New("invalid generation request")

	// ErrTimeout is returned when the per-kind deadline is reached.
	ErrTimeout = errors.New("generation request timed out")

	// ErrNetwork is returned when the connection drops or the endpoint is unreachable.
	ErrNetwork = errors.New("generation request failed to reach the workflow engine")

	// ErrHTTP is matched by every *HTTPError.
	ErrHTTP = errors.New("workflow engine returned an error status")

	// ErrCanceled is returned when the caller's context was cancelled
	// before a response arrived.
	ErrCanceled = errors.New("generation request abandoned by caller")

	// ErrNotConfigured is returned when no webhook endpoint is configured.
	ErrNotConfigured = errors.New("webhook endpoint not configured")
)

// HTTPError is a non-success status from the workflow engine.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("workflow engine error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("workflow engine error (status %d): %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrHTTP) match any HTTPError.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

// FailureKind is the error taxonomy used to decide how a failed dispatch
// is recorded.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "validation"
	FailureTimeout    FailureKind = "timeout"
	FailureNetwork    FailureKind = "network"
	FailureHTTP       FailureKind = "http"
	FailureCanceled   FailureKind = "canceled"
	FailureConfig     FailureKind = "configuration"
	FailureUnknown    FailureKind = "unknown"
)

// Classify maps an error onto the failure taxonomy.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return FailureCanceled
	case errors.Is(err, ErrNetwork):
		return FailureNetwork
	case errors.Is(err, ErrHTTP):
		return FailureHTTP
	case errors.Is(err, ErrNotConfigured):
		return FailureConfig
	default:
		return FailureUnknown
	}
}

// MayStillSucceed reports whether the engine could still be working on a
// request that failed with err. Only the client gave up; the server did not
// say no.
func MayStillSucceed(err error) bool {
	switch Classify(err) {
	case FailureTimeout, FailureNetwork, FailureCanceled:
		return true
	default:
		return false
	}
}
