// Package config defines kiosk configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Durations are configured in milliseconds and read through accessors.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the control API listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BackendURL is the recognition backend base URL.
	BackendURL string `koanf:"backend_url"`
	// BackendTimeoutMS bounds every backend request, including submission.
	BackendTimeoutMS int `koanf:"backend_timeout_ms"`
	// AuthToken is the bearer token used for attendance submissions.
	AuthToken string `koanf:"auth_token"`
	// AdminToken is used for geofence administration calls.
	AdminToken string `koanf:"admin_token"`

	// CameraSource is "pattern" (synthetic) or "dir" (stills from CameraDir).
	CameraSource string `koanf:"camera_source"`
	CameraDir    string `koanf:"camera_dir"`
	// CameraWidth and CameraHeight are the preferred stream resolution.
	CameraWidth  int    `koanf:"camera_width"`
	CameraHeight int    `koanf:"camera_height"`
	CameraFacing string `koanf:"camera_facing"`
	// CameraFirstFrameMS delays the synthetic camera's first frame.
	CameraFirstFrameMS int `koanf:"camera_first_frame_ms"`

	// Capture* describe the attendance still.
	CaptureWidth          int `koanf:"capture_width"`
	CaptureHeight         int `koanf:"capture_height"`
	CaptureQuality        int `koanf:"capture_quality"`
	CaptureReadyTimeoutMS int `koanf:"capture_ready_timeout_ms"`

	// LocationSource is "static", "disabled" or "denied".
	LocationSource       string  `koanf:"location_source"`
	LocationLatitude     float64 `koanf:"location_latitude"`
	LocationLongitude    float64 `koanf:"location_longitude"`
	LocationAccuracyM    float64 `koanf:"location_accuracy_m"`
	LocationTimeoutMS    int     `koanf:"location_timeout_ms"`
	LocationHighAccuracy bool    `koanf:"location_high_accuracy"`
	LocationMaxAgeMS     int     `koanf:"location_max_age_ms"`

	// OutcomeQueueSize bounds the outcome event queue.
	OutcomeQueueSize int `koanf:"outcome_queue_size"`
	// RecordsLimit caps cached attendance records per user.
	RecordsLimit int `koanf:"records_limit"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		BackendURL:            "http://localhost:5000",
		BackendTimeoutMS:      30_000,
		CameraSource:          "pattern",
		CameraWidth:           1280,
		CameraHeight:          720,
		CameraFacing:          "user",
		CameraFirstFrameMS:    300,
		CaptureWidth:          640,
		CaptureHeight:         480,
		CaptureQuality:        80,
		CaptureReadyTimeoutMS: 5_000,
		LocationSource:        "disabled",
		LocationTimeoutMS:     10_000,
		LocationHighAccuracy:  true,
		LocationMaxAgeMS:      60_000,
		OutcomeQueueSize:      64,
		RecordsLimit:          20,
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// BackendTimeout returns the backend request timeout.
func (c *Config) BackendTimeout() time.Duration { return ms(c.BackendTimeoutMS) }

// CameraFirstFrame returns the synthetic camera warm-up delay.
func (c *Config) CameraFirstFrame() time.Duration { return ms(c.CameraFirstFrameMS) }

// CaptureReadyTimeout returns how long a capture waits for the first frame.
func (c *Config) CaptureReadyTimeout() time.Duration { return ms(c.CaptureReadyTimeoutMS) }

// LocationTimeout returns the location probe bound.
func (c *Config) LocationTimeout() time.Duration { return ms(c.LocationTimeoutMS) }

// LocationMaxAge returns the accepted age of a cached fix.
func (c *Config) LocationMaxAge() time.Duration { return ms(c.LocationMaxAgeMS) }
