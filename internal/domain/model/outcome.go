package model

import (
	"fmt"
	"time"
)

// OutcomeKind discriminates the Outcome variants.
type OutcomeKind string

// Outcome kinds. InProgress is a display placeholder for an attempt that
// has not settled; every other kind is terminal.
const (
	OutcomeInProgress    OutcomeKind = "in_progress"
	OutcomeRecognized    OutcomeKind = "recognized"
	OutcomeNotRecognized OutcomeKind = "not_recognized"
	OutcomeRejected      OutcomeKind = "rejected"
	OutcomeFailed        OutcomeKind = "failed"
)

// FailureKind is the closed taxonomy of user-visible failures.
type FailureKind string

// Failure kinds.
const (
	FailureCameraPermissionDenied   FailureKind = "camera_permission_denied"
	FailureCameraUnavailable        FailureKind = "camera_unavailable"
	FailureCameraNotReady           FailureKind = "camera_not_ready"
	FailureLocationPermissionDenied FailureKind = "location_permission_denied"
	FailureLocationUnavailable      FailureKind = "location_unavailable"
	FailureLocationTimeout          FailureKind = "location_timeout"
	FailureCaptureFailed            FailureKind = "capture_failed"
	FailureNetworkError             FailureKind = "network_error"
	FailureUnauthorized             FailureKind = "unauthorized"
	FailureServerRejected           FailureKind = "server_rejected"
	FailureSessionBusy              FailureKind = "session_busy"
)

var failureMessages = map[FailureKind]string{
	FailureCameraPermissionDenied:   "Camera access was denied. Allow camera access and try again.",
	FailureCameraUnavailable:        "No camera is available.",
	FailureCameraNotReady:           "Camera is still starting. Try again in a moment.",
	FailureLocationPermissionDenied: "Location access was denied.",
	FailureLocationUnavailable:      "Location is unavailable.",
	FailureLocationTimeout:          "Location request timed out.",
	FailureCaptureFailed:            "Could not capture an image. Try again.",
	FailureNetworkError:             "Could not reach the attendance server.",
	FailureUnauthorized:             "Your session has expired. Please log in again.",
	FailureServerRejected:           "The attendance server failed to process the request.",
	FailureSessionBusy:              "An attendance attempt is already in progress.",
}

// Message returns the default user-facing text for k.
func (k FailureKind) Message() string {
	if m, ok := failureMessages[k]; ok {
		return m
	}
	return string(k)
}

// Failure is the error form of a FailureKind, returned synchronously by
// session operations that are refused outright.
type Failure struct {
	Kind    FailureKind
	Message string
}

// NewFailure returns a Failure with the kind's default message.
func NewFailure(kind FailureKind) *Failure {
	return &Failure{Kind: kind, Message: kind.Message()}
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Is matches another *Failure of the same kind.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

// Recognition carries the details of a Recognized outcome.
type Recognition struct {
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	// LocationVerified is nil when the server did not evaluate location.
	LocationVerified *bool  `json:"location_verified"`
	LocationMessage  string `json:"location_message,omitempty"`
}

// Outcome is the user-visible result of an attempt.
type Outcome struct {
	AttemptID   AttemptID    `json:"attempt_id"`
	Kind        OutcomeKind  `json:"kind"`
	Recognition *Recognition `json:"recognition,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	FailureKind FailureKind  `json:"failure_kind,omitempty"`
	Message     string       `json:"message,omitempty"`
	At          time.Time    `json:"at"`
}

// InProgress is the placeholder shown while attempt id is running.
func InProgress(id AttemptID, at time.Time) Outcome {
	return Outcome{AttemptID: id, Kind: OutcomeInProgress, At: at}
}

// Recognized builds a Recognized outcome.
func Recognized(r Recognition) Outcome {
	return Outcome{Kind: OutcomeRecognized, Recognition: &r}
}

// NotRecognized builds a NotRecognized outcome.
func NotRecognized() Outcome {
	return Outcome{Kind: OutcomeNotRecognized}
}

// Rejected builds a Rejected outcome with the server's reason.
func Rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}

// Failed builds a Failed outcome. An empty message falls back to the
// kind's default text.
func Failed(kind FailureKind, message string) Outcome {
	if message == "" {
		message = kind.Message()
	}
	return Outcome{Kind: OutcomeFailed, FailureKind: kind, Message: message}
}

// Terminal reports whether the outcome ends an attempt.
func (o Outcome) Terminal() bool { return o.Kind != OutcomeInProgress && o.Kind != "" }

// Warning returns a non-empty note when a recognized user was matched but
// the server could not verify their location.
func (o Outcome) Warning() string {
	if o.Kind != OutcomeRecognized || o.Recognition == nil {
		return ""
	}
	v := o.Recognition.LocationVerified
	if v == nil || *v {
		return ""
	}
	if o.Recognition.LocationMessage != "" {
		return o.Recognition.LocationMessage
	}
	return "location could not be verified"
}

// Text renders the outcome as a single display line.
func (o Outcome) Text() string {
	switch o.Kind {
	case OutcomeInProgress:
		return "Processing..."
	case OutcomeRecognized:
		r := o.Recognition
		if r == nil {
			return "Recognized"
		}
		s := fmt.Sprintf("Welcome, %s (%.1f%% match)", r.Name, r.Similarity*100)
		if w := o.Warning(); w != "" {
			s += " - " + w
		}
		return s
	case OutcomeNotRecognized:
		return "Face not recognized. Please try again."
	case OutcomeRejected:
		return "Rejected: " + o.Reason
	case OutcomeFailed:
		return o.Message
	default:
		return ""
	}
}
