package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PRESENCE_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if PRESENCE_CONFIG is set
//  3. env (prefix PRESENCE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PRESENCE_BACKEND_URL -> backend_url (flat keys, underscores kept).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("backend_url %q must be an http(s) URL", c.BackendURL)
	}
	switch c.CameraSource {
	case "pattern":
	case "dir":
		if c.CameraDir == "" {
			return invalid("camera_dir is required when camera_source is dir")
		}
	default:
		return invalid("unknown camera_source %q", c.CameraSource)
	}
	switch c.LocationSource {
	case "static", "disabled", "denied":
	default:
		return invalid("unknown location_source %q", c.LocationSource)
	}
	if c.LocationSource == "static" && (c.LocationLatitude < -90 || c.LocationLatitude > 90 || c.LocationLongitude < -180 || c.LocationLongitude > 180) {
		return invalid("location coordinates out of range")
	}
	if c.CaptureQuality < 1 || c.CaptureQuality > 100 {
		return invalid("capture_quality %d not in 1..100", c.CaptureQuality)
	}
	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		return invalid("capture size must be positive")
	}
	if c.LocationTimeoutMS <= 0 {
		return invalid("location_timeout_ms must be positive")
	}
	if c.BackendTimeoutMS <= 0 {
		return invalid("backend_timeout_ms must be positive")
	}
	if c.OutcomeQueueSize <= 0 || c.RecordsLimit <= 0 {
		return invalid("outcome_queue_size and records_limit must be positive")
	}
	return nil
}
