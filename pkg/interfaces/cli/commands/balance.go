package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewBalanceCommand creates the balance command
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Compute per-location period balances",
		Long: `Normalize a transaction file, compute opening, inbound, outbound and
closing stock for every canonical location and period, and check the
balance table for integrity. When --reference is given the balances are
also reconciled.

Exits 1 when the balance integrity check fails.

Example:
  wh3 balance --transactions tx.csv --initial opening.csv
  wh3 balance --transactions tx.xlsx --db wh3.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(opts, cmd)
		},
	}

	addRunFlags(cmd, opts)
	return cmd
}

func runBalance(opts *RunOptions, cmd *cobra.Command) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := opts.executeRun(ctx, cmd, false)
	if err != nil {
		return err
	}

	if result.Validation != nil && !result.Validation.Valid {
		return NewExitError(ExitFailure, "balance integrity check failed")
	}
	return nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
