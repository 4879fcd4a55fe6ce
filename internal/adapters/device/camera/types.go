package camera

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool { return r.Width > 0 && r.Height > 0 }

// Facing selects the front or rear camera.
type Facing string

// Facing modes.
const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// ParseFacing parses a facing mode, defaulting to FacingUser.
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "user", "front":
		return FacingUser, nil
	case "environment", "rear", "back":
		return FacingEnvironment, nil
	default:
		return "", fmt.Errorf("camera: unknown facing mode %q", s)
	}
}

// CaptureProfile is the target of a single still capture.
type CaptureProfile struct {
	Width   int
	Height  int
	Quality int // JPEG quality 1..100
}

// Capture profiles. Attendance stills are small; registration stills keep
// more detail for enrolment.
var (
	AttendanceProfile   = CaptureProfile{Width: 640, Height: 480, Quality: 80}
	RegistrationProfile = CaptureProfile{Width: 1280, Height: 960, Quality: 92}
)

// Constraints are the stream parameters requested from a Device.
type Constraints struct {
	Preferred Resolution
	Facing    Facing
}

// Stream is an open video stream. Latest returns ErrNotReady until the first
// frame arrives. A stream that lost its device returns an error wrapping
// lease.ErrUnavailable.
type Stream interface {
	Latest() (image.Image, error)
	Resolution() Resolution
	Close() error
}

// Device opens camera streams. Open may block on a permission prompt and
// should honour ctx.
type Device interface {
	Name() string
	Open(ctx context.Context, c Constraints) (Stream, error)
}
