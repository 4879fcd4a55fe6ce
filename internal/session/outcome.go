package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/presence/internal/adapters/backend"
	"github.com/okian/presence/internal/adapters/device/camera"
	"github.com/okian/presence/internal/domain/lease"
	"github.com/okian/presence/internal/domain/model"
)

const defaultRejection = "attendance rejected"

// OutcomeFromVerdict maps a server verdict to the outcome shown to the user.
// A verdict with success=false is a rejection even when it names a matched
// user.
func OutcomeFromVerdict(v backend.Verdict) model.Outcome {
	if !v.Success {
		reason := v.Error
		if reason == "" {
			reason = v.Message
		}
		if reason == "" {
			reason = defaultRejection
		}
		return model.Rejected(reason)
	}
	if u := v.RecognizedUser; u != nil {
		r := model.Recognition{
			UserID:     u.UserID,
			Name:       u.Name,
			Similarity: clamp01(u.Similarity),
		}
		if v.Location != nil {
			verified := v.Location.Verified
			r.LocationVerified = &verified
			r.LocationMessage = v.Location.Message
		}
		return model.Recognized(r)
	}
	o := model.NotRecognized()
	o.Reason = v.Message
	return o
}

// OutcomeFromError maps a submission error to a Failed outcome.
func OutcomeFromError(err error) model.Outcome {
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		return model.Failed(model.FailureUnauthorized, "")
	case errors.Is(err, backend.ErrServer):
		return model.Failed(model.FailureServerRejected, serverDetail(err))
	default:
		return model.Failed(model.FailureNetworkError, "")
	}
}

// maxDetail bounds how much of a response body reaches the display.
const maxDetail = 80

// serverDetail appends the response status and a short body excerpt to the
// default server failure text.
func serverDetail(err error) string {
	var se *backend.SubmitError
	if !errors.As(err, &se) || se.Status == 0 {
		return ""
	}
	msg := fmt.Sprintf("%s (status %d", model.FailureServerRejected.Message(), se.Status)
	if body := strings.TrimSpace(se.Body); body != "" {
		if r := []rune(body); len(r) > maxDetail {
			body = string(r[:maxDetail]) + "..."
		}
		msg += ": " + body
	}
	return msg + ")"
}

func cameraStartFailure(err error) model.FailureKind {
	if errors.Is(err, lease.ErrPermissionDenied) {
		return model.FailureCameraPermissionDenied
	}
	return model.FailureCameraUnavailable
}

func locationFailure(err error) model.FailureKind {
	switch {
	case errors.Is(err, lease.ErrPermissionDenied):
		return model.FailureLocationPermissionDenied
	case errors.Is(err, lease.ErrTimeout):
		return model.FailureLocationTimeout
	default:
		return model.FailureLocationUnavailable
	}
}

// captureFailure classifies a capture error and reports whether the camera
// is gone and must be released.
func captureFailure(err error) (model.FailureKind, bool) {
	switch {
	case errors.Is(err, camera.ErrNotReady):
		return model.FailureCameraNotReady, false
	case errors.Is(err, lease.ErrPermissionDenied):
		return model.FailureCameraPermissionDenied, true
	case errors.Is(err, lease.ErrUnavailable), errors.Is(err, camera.ErrNoStream):
		return model.FailureCameraUnavailable, true
	default:
		return model.FailureCaptureFailed, false
	}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
