package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macho715/wh3/pkg/application/services/normalizer"
	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/interfaces/cli/output"
)

// ValidateOptions holds flags for the validate command
type ValidateOptions struct {
	*RootOptions
	Transactions string
	Ontology     string
	Granularity  string
}

// NewValidateCommand creates the validate command
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a transaction file without computing balances",
		Long: `Load and normalize a transaction file and report malformed records and
labels no rule resolves. Nothing is computed or stored.

Exits 1 when the file is structurally invalid or any record is malformed
or unresolved.

Example:
  wh3 validate --transactions tx.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Transactions, "transactions", "", "transaction file, CSV or XLSX (required)")
	cmd.Flags().StringVar(&opts.Ontology, "ontology", "", "ontology YAML file (default built-in vocabulary)")
	cmd.Flags().StringVar(&opts.Granularity, "granularity", "monthly", "period granularity (monthly|daily)")
	_ = cmd.MarkFlagRequired("transactions")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	g, err := entities.ParseGranularity(opts.Granularity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	path := opts.Ontology
	if path == "" && opts.Config != nil {
		path = opts.Config.OntologyFile
	}
	resolver, err := loadResolver(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load ontology", err)
	}

	rows, err := loaderFor(opts.Transactions, g).LoadTransactions(opts.Transactions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load transactions", err)
	}

	report := output.ValidationReport{Source: opts.Transactions, Rows: len(rows)}

	result, err := normalizer.NewNormalizer(resolver).Collect(rows)
	if err != nil {
		if !errors.Is(err, entities.ErrInvalidSource) {
			return WrapExitError(ExitCommandError, "failed to normalize", err)
		}
		report.SourceError = err.Error()
	} else {
		report.Events = len(result.Events)
		report.Diagnostics = result.Diagnostics
	}

	if err := output.WriteValidation(cmd.OutOrStdout(), opts.Format, report); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed validation", opts.Transactions))
	}
	return nil
}
