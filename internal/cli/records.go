package cli

import (
	"fmt"

	"github.com/okian/presence/internal/domain/model"
	"github.com/spf13/cobra"
)

func newRecordsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List recent attendance records",
		Long: `Fetch the most recent attendance records from the backend, newest first.

Example:
  presencectl records --user u-17 --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecords(cmd, e)
		},
	}
	cmd.Flags().String("user", "", "Only show records of this user id")
	cmd.Flags().Int("limit", 0, "Maximum number of records to print (0 = all)")
	return cmd
}

func runRecords(cmd *cobra.Command, e *env) error {
	user := mustGetString(cmd, "user")
	limit := mustGetInt(cmd, "limit")

	client, err := e.client()
	if err != nil {
		return err
	}
	records, err := client.AttendanceRecords(commandContext(cmd), e.cfg.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to get records: %w", err)
	}

	out := make([]model.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if user != "" && r.UserID != user {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return writeYAML(cmd.OutOrStdout(), out)
}
