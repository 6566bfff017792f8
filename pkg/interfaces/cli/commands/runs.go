package commands

import (
	"github.com/spf13/cobra"

	"github.com/macho715/wh3/pkg/interfaces/cli/output"
)

// NewRunsCommand creates the runs command
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs stored in a database",
		Long: `List the balance runs stored in a SQLite database, oldest first. A run id
can be passed to --opening-from-run to continue balances from its final
closing stocks.

Example:
  wh3 runs --db wh3.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := database
			if !cmd.Flags().Changed("db") && rootOpts.Config != nil {
				path = rootOpts.Config.DBPath
			}
			if path == "" {
				return NewExitError(ExitCommandError, "no database given (--db or WH3_DB_PATH)")
			}

			store, err := openStore(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list runs", err)
			}
			if err := output.WriteRuns(cmd.OutOrStdout(), rootOpts.Format, runs); err != nil {
				return WrapExitError(ExitCommandError, "failed to write output", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "SQLite database")
	return cmd
}
