package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/presence/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.LocationTimeoutMS, convey.ShouldEqual, 10_000)
				convey.So(cfg.OutcomeQueueSize, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PRESENCE_ADDR", ":8080")
			_ = os.Setenv("PRESENCE_BACKEND_URL", "https://attendance.example.com")
			_ = os.Setenv("PRESENCE_AUTH_TOKEN", "kiosk-token")
			_ = os.Setenv("PRESENCE_LOCATION_SOURCE", "static")
			_ = os.Setenv("PRESENCE_LOCATION_LATITUDE", "52.52")
			_ = os.Setenv("PRESENCE_LOCATION_LONGITUDE", "13.405")
			_ = os.Setenv("PRESENCE_LOCATION_HIGH_ACCURACY", "false")
			_ = os.Setenv("PRESENCE_CAPTURE_QUALITY", "92")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.BackendURL, convey.ShouldEqual, "https://attendance.example.com")
				convey.So(cfg.AuthToken, convey.ShouldEqual, "kiosk-token")
				convey.So(cfg.LocationSource, convey.ShouldEqual, "static")
				convey.So(cfg.LocationLatitude, convey.ShouldAlmostEqual, 52.52)
				convey.So(cfg.LocationLongitude, convey.ShouldAlmostEqual, 13.405)
				convey.So(cfg.LocationHighAccuracy, convey.ShouldBeFalse)
				convey.So(cfg.CaptureQuality, convey.ShouldEqual, 92)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("PRESENCE_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			yamlContent := `
# kiosk at the front desk
addr: ":9090"  # control api
camera_source: dir
camera_dir: /srv/frames
location_timeout_ms: 4000
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PRESENCE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")               // From file
				convey.So(cfg.CameraSource, convey.ShouldEqual, "dir")         // From file
				convey.So(cfg.CameraDir, convey.ShouldEqual, "/srv/frames")    // From file
				convey.So(cfg.LocationTimeoutMS, convey.ShouldEqual, 4000)     // From file
				convey.So(cfg.CaptureReadyTimeoutMS, convey.ShouldEqual, 5000) // From defaults
			})
		})

		convey.Convey("When env and file both set a key", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PRESENCE_CONFIG", tmpFile)
			_ = os.Setenv("PRESENCE_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PRESENCE_CAPTURE_WIDTH", "wide")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("PRESENCE_CONFIG", "/nonexistent/presence.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"PRESENCE_CONFIG",
		"PRESENCE_ADDR",
		"PRESENCE_BACKEND_URL",
		"PRESENCE_AUTH_TOKEN",
		"PRESENCE_LOCATION_SOURCE",
		"PRESENCE_LOCATION_LATITUDE",
		"PRESENCE_LOCATION_LONGITUDE",
		"PRESENCE_LOCATION_HIGH_ACCURACY",
		"PRESENCE_CAPTURE_QUALITY",
		"PRESENCE_CAPTURE_WIDTH",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "presence-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
