package model

// SessionState is the attendance session lifecycle state.
type SessionState int

// Session states in lifecycle order.
const (
	StateIdle SessionState = iota
	StateCameraOff
	StateCameraReady
	StateLocationAcquiring
	StateCapturing
	StateSubmitting
	StateSettled
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateCameraOff:         "camera_off",
	StateCameraReady:       "camera_ready",
	StateLocationAcquiring: "location_acquiring",
	StateCapturing:         "capturing",
	StateSubmitting:        "submitting",
	StateSettled:           "settled",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s SessionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// InAttempt reports whether an attempt pipeline owns the session.
func (s SessionState) InAttempt() bool {
	return s == StateLocationAcquiring || s == StateCapturing || s == StateSubmitting || s == StateSettled
}

// StateNames lists every state name, used to reset per-state gauges.
func StateNames() []string {
	out := make([]string, len(stateNames))
	copy(out, stateNames[:])
	return out
}
