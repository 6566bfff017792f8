package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewReconcileCommand creates the reconcile command
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare computed closings with reference closing stocks",
		Long: `Compute balances like the balance command and compare every computed
closing stock with the reference record of the same location and period.
Reference labels go through the same name resolution as transactions.
With --format csv the reconciliation table is written instead of balances.

Exits 1 when any compared closing differs by more than --epsilon.

Example:
  wh3 reconcile --transactions tx.csv --reference counts.csv --epsilon 0.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	addRunFlags(cmd, opts)
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func runReconcile(opts *RunOptions, cmd *cobra.Command) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := opts.executeRun(ctx, cmd, true)
	if err != nil {
		return err
	}

	if result.Reconciliation == nil {
		return NewExitError(ExitCommandError, "no reconciliation was performed")
	}
	if n := len(result.Reconciliation.Mismatches()); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d closing stock(s) differ from reference", n))
	}
	return nil
}
