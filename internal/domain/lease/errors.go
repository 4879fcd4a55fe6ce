package lease

import (
	"context"
	"errors"
	"fmt"
)

// Acquire failure reasons. An *AcquireError always unwraps to exactly one of them.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("resource unavailable")
	ErrTimeout          = errors.New("acquire timed out")
)

// Programming errors and lifecycle outcomes.
var (
	// ErrAlreadyHeld is returned when acquiring a slot that already holds a
	// live or pending lease. Callers must release first.
	ErrAlreadyHeld = errors.New("lease already held")
	// ErrAbandoned is returned when the slot was released while the acquire
	// was still opening the resource. The opened handle has been closed.
	ErrAbandoned = errors.New("acquire abandoned by release")
)

// AcquireError reports why a resource of Kind could not be acquired.
type AcquireError struct {
	Kind   Kind
	Reason error
	Err    error
}

func (e *AcquireError) Error() string {
	if e.Err == nil || e.Err == e.Reason { //nolint:errorlint // identity check against the sentinel
		return fmt.Sprintf("%s: %v", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %v", e.Kind, e.Reason, e.Err)
}

func (e *AcquireError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// Classify turns a raw device error into an *AcquireError for kind.
// Errors already carrying a reason keep it; deadline errors become
// ErrTimeout; anything else is treated as ErrUnavailable.
func Classify(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var ae *AcquireError
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &AcquireError{Kind: kind, Reason: ErrPermissionDenied, Err: err}
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &AcquireError{Kind: kind, Reason: ErrTimeout, Err: err}
	case errors.Is(err, ErrUnavailable):
		return &AcquireError{Kind: kind, Reason: ErrUnavailable, Err: err}
	default:
		return &AcquireError{Kind: kind, Reason: ErrUnavailable, Err: err}
	}
}

// ReasonName returns a short label for err's acquire reason, used in logs and metrics.
func ReasonName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrAbandoned):
		return "abandoned"
	case errors.Is(err, ErrAlreadyHeld):
		return "already_held"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}
