package session

import (
	"errors"

	"github.com/okian/presence/internal/domain/model"
)

var (
	// ErrSessionBusy is returned when an operation conflicts with an attempt
	// or camera start in progress. It matches any *model.Failure of kind
	// FailureSessionBusy under errors.Is.
	ErrSessionBusy error = model.NewFailure(model.FailureSessionBusy)
	// ErrClosed is returned after Teardown.
	ErrClosed = errors.New("session closed")
	// ErrSuperseded is reported by Ticket.Wait when a newer attempt, a camera
	// stop or a teardown discarded the attempt's result.
	ErrSuperseded = errors.New("attempt superseded")
)
