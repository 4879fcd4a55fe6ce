// Package cli implements presencectl, the operator tool for a kiosk: a
// one-shot attendance attempt, records lookup, user registration and
// geofence administration against the recognition backend.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/okian/presence/internal/adapters/backend"
	"github.com/okian/presence/internal/config"
	"github.com/okian/presence/pkg/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// env is the state shared by every subcommand after flags are parsed.
type env struct {
	cfg *config.Config
	log logger.Logger
}

// NewRootCommand builds the presencectl command tree.
func NewRootCommand() *cobra.Command {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:   "presencectl",
		Short: "Operate a face-recognition attendance kiosk",
		Long: `presencectl talks to the attendance recognition backend using the same
configuration as the kiosk daemon (PRESENCE_* environment variables, an
optional PRESENCE_CONFIG YAML file and a .env file in the working directory).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd)
		},
	}

	rootCmd.PersistentFlags().String("backend-url", "", "Override the recognition backend URL")
	rootCmd.PersistentFlags().String("token", "", "Override the bearer token for attendance calls")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		newAttendCommand(e),
		newRecordsCommand(e),
		newRegisterCommand(e),
		newLocationCommand(e),
	)
	return rootCmd
}

// Execute runs presencectl and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (e *env) init(cmd *cobra.Command) error {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	level := "warn"
	if mustGetBool(cmd, "verbose") {
		level = "debug"
	}
	_ = logger.SetLevelString(level)
	e.log = logger.Get().Named("presencectl")

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	if u := mustGetString(cmd, "backend-url"); u != "" {
		cfg.BackendURL = u
	}
	if t := mustGetString(cmd, "token"); t != "" {
		cfg.AuthToken = t
	}
	e.cfg = cfg
	return nil
}

func (e *env) client() (*backend.Client, error) {
	c, err := backend.New(e.cfg.BackendURL,
		backend.WithTimeout(e.cfg.BackendTimeout()),
		backend.WithLogger(e.log.Named("backend")))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return c, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeYAML prints v as a YAML document.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}
