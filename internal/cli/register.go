package cli

import (
	"fmt"

	"github.com/okian/presence/internal/adapters/backend"
	"github.com/okian/presence/internal/adapters/device/camera"
	service "github.com/okian/presence/internal/app"
	"github.com/spf13/cobra"
)

func newRegisterCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Enrol a new user from a camera still",
		Long: `Capture one high-resolution still with the configured camera and enrol
it with the backend under the given name and user id.

Example:
  presencectl register --name "Ana Lima" --user-id u-17 --password s3cret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegister(cmd, e)
		},
	}
	cmd.Flags().String("name", "", "Display name (required)")
	cmd.Flags().String("user-id", "", "User id (required)")
	cmd.Flags().String("password", "", "Account password (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runRegister(cmd *cobra.Command, e *env) error {
	reg := backend.Registration{
		Name:     mustGetString(cmd, "name"),
		UserID:   mustGetString(cmd, "user-id"),
		Password: mustGetString(cmd, "password"),
	}
	ctx := commandContext(cmd)

	client, err := e.client()
	if err != nil {
		return err
	}
	facing, err := camera.ParseFacing(e.cfg.CameraFacing)
	if err != nil {
		return err
	}

	cam := camera.New(service.NewCameraDevice(e.cfg), camera.WithLogger(e.log.Named("camera")))
	defer cam.Stop()
	if _, err := cam.Start(ctx, camera.Resolution{Width: e.cfg.CameraWidth, Height: e.cfg.CameraHeight}, facing); err != nil {
		return fmt.Errorf("failed to start camera: %w", err)
	}
	frame, err := cam.CaptureWhenReady(ctx, camera.RegistrationProfile, e.cfg.CaptureReadyTimeout(), camera.DefaultReadyPoll)
	if err != nil {
		return fmt.Errorf("failed to capture: %w", err)
	}
	cam.Stop()

	done, err := client.Register(ctx, frame, reg)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", reg.UserID, err)
	}
	return writeYAML(cmd.OutOrStdout(), done)
}
