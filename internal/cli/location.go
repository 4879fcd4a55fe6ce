package cli

import (
	"fmt"

	"github.com/okian/presence/internal/adapters/backend"
	"github.com/spf13/cobra"
)

func newLocationCommand(e *env) *cobra.Command {
	locationCmd := &cobra.Command{
		Use:   "location",
		Short: "Inspect and manage the attendance geofence",
		Long:  `Geofence administration. Requires admin_token (PRESENCE_ADMIN_TOKEN).`,
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the geofence settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := e.client()
			if err != nil {
				return err
			}
			s, err := client.LocationSettings(commandContext(cmd), e.cfg.AdminToken)
			if err != nil {
				return fmt.Errorf("failed to get location settings: %w", err)
			}
			return writeYAML(cmd.OutOrStdout(), s)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the geofence settings",
		Long: `Replace the geofence settings.

Example:
  presencectl location set --enabled --lat 40.7128 --lon -74.0060 --radius 150 --name "Head office"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := backend.LocationSettings{
				Enabled:      mustGetBool(cmd, "enabled"),
				Latitude:     mustGetFloat64(cmd, "lat"),
				Longitude:    mustGetFloat64(cmd, "lon"),
				Radius:       mustGetInt(cmd, "radius"),
				LocationName: mustGetString(cmd, "name"),
			}
			if in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180 {
				return fmt.Errorf("coordinates out of range: %v,%v", in.Latitude, in.Longitude)
			}
			if in.Radius <= 0 {
				return fmt.Errorf("radius must be positive, got %d", in.Radius)
			}
			client, err := e.client()
			if err != nil {
				return err
			}
			s, err := client.UpdateLocationSettings(commandContext(cmd), e.cfg.AdminToken, in)
			if err != nil {
				return fmt.Errorf("failed to update location settings: %w", err)
			}
			return writeYAML(cmd.OutOrStdout(), s)
		},
	}
	setCmd.Flags().Bool("enabled", false, "Enforce the geofence")
	setCmd.Flags().Float64("lat", 0, "Geofence centre latitude")
	setCmd.Flags().Float64("lon", 0, "Geofence centre longitude")
	setCmd.Flags().Int("radius", 100, "Allowed radius in meters")
	setCmd.Flags().String("name", "", "Human readable location name")

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Check coordinates against the geofence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := e.client()
			if err != nil {
				return err
			}
			res, err := client.TestLocation(commandContext(cmd), e.cfg.AdminToken,
				mustGetFloat64(cmd, "lat"), mustGetFloat64(cmd, "lon"))
			if err != nil {
				return fmt.Errorf("failed to test location: %w", err)
			}
			return writeYAML(cmd.OutOrStdout(), res)
		},
	}
	testCmd.Flags().Float64("lat", 0, "Latitude to test")
	testCmd.Flags().Float64("lon", 0, "Longitude to test")
	_ = testCmd.MarkFlagRequired("lat")
	_ = testCmd.MarkFlagRequired("lon")

	locationCmd.AddCommand(getCmd, setCmd, testCmd)
	return locationCmd
}
