package cli

import (
	"context"
	"fmt"
	"time"

	service "github.com/okian/presence/internal/app"
	"github.com/okian/presence/internal/domain/model"
	"github.com/spf13/cobra"
)

// attendOutput is the printed form of an outcome.
type attendOutput struct {
	AttemptID   uint64   `yaml:"attempt_id"`
	Kind        string   `yaml:"kind"`
	Text        string   `yaml:"text"`
	Warning     string   `yaml:"warning,omitempty"`
	UserID      string   `yaml:"user_id,omitempty"`
	Name        string   `yaml:"name,omitempty"`
	Similarity  *float64 `yaml:"similarity,omitempty"`
	FailureKind string   `yaml:"failure_kind,omitempty"`
}

func newAttendOutput(o model.Outcome) attendOutput {
	out := attendOutput{
		AttemptID:   uint64(o.AttemptID),
		Kind:        string(o.Kind),
		Text:        o.Text(),
		Warning:     o.Warning(),
		FailureKind: string(o.FailureKind),
	}
	if r := o.Recognition; r != nil {
		sim := r.Similarity
		out.UserID, out.Name, out.Similarity = r.UserID, r.Name, &sim
	}
	return out
}

func newAttendCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attend",
		Short: "Run one attendance attempt with the configured camera",
		Long: `Open the configured camera, acquire a location fix when a location
source is configured, submit one frame to the recognition backend and print
the outcome. The camera is released before the command returns.

Example:
  PRESENCE_CAMERA_SOURCE=dir PRESENCE_CAMERA_DIR=./faces presencectl attend`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAttend(cmd, e)
		},
	}
	cmd.Flags().Duration("timeout", 2*time.Minute, "Give up waiting for the outcome after this long")
	return cmd
}

func runAttend(cmd *cobra.Command, e *env) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
	defer cancel()

	svc := service.New(e.cfg, service.WithLogger(e.log))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start kiosk: %w", err)
	}
	defer svc.Stop(ctx)

	if err := svc.StartCamera(ctx); err != nil {
		// The failure outcome explains why the camera could not open.
		if o, _, ok := svc.Outcome(ctx); ok {
			_ = writeYAML(cmd.OutOrStdout(), newAttendOutput(o))
		}
		return fmt.Errorf("failed to start camera: %w", err)
	}
	o, err := svc.AttemptAndWait(ctx)
	if err != nil {
		return fmt.Errorf("attempt did not settle: %w", err)
	}
	return writeYAML(cmd.OutOrStdout(), newAttendOutput(o))
}
