package camera

import "errors"

var (
	// ErrNoStream is returned when capturing without a live stream.
	ErrNoStream = errors.New("camera: no live stream")
	// ErrNotReady means the stream has not produced its first frame yet.
	// Callers may retry.
	ErrNotReady = errors.New("camera: stream not ready")
	// ErrCaptureFailed wraps snapshot and encode failures.
	ErrCaptureFailed = errors.New("camera: capture failed")
)
