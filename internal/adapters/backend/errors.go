package backend

import (
	"errors"
	"fmt"
)

// Submit failure kinds. A *SubmitError unwraps to exactly one of them.
var (
	ErrNetwork      = errors.New("network error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrServer       = errors.New("server error")
)

// ErrRejected is returned by the admin and records calls when the server
// answers with success=false.
var ErrRejected = errors.New("request rejected")

// SubmitError describes a failed round trip to the backend.
type SubmitError struct {
	Kind   error
	Status int    // HTTP status, 0 when no response arrived
	Body   string // truncated response body
	Err    error
}

func (e *SubmitError) Error() string {
	msg := e.Kind.Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmitError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
