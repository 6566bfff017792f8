package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macho715/wh3/pkg/infrastructure/config"
	"github.com/macho715/wh3/pkg/infrastructure/logger"
	"github.com/macho715/wh3/pkg/interfaces/cli/output"
)

// RootOptions holds global flags and the settings shared by every command
type RootOptions struct {
	Verbose bool
	Format  string
	EnvFile string

	// set by the root PersistentPreRunE
	Config *config.AppConfig
	Logger *slog.Logger
}

// NewRootCommand creates the wh3 root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wh3",
		Short: "Warehouse inventory balances",
		Long: `wh3 normalizes warehouse movement records onto a canonical location
vocabulary, computes per-location period balances and reconciles them against
independently recorded closing stocks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|csv)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "env file to load (default .env)")

	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !output.IsValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, output.ValidFormats))
	}

	var envFiles []string
	if o.EnvFile != "" {
		envFiles = append(envFiles, o.EnvFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg

	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	l, err := logger.Init(level, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid logging configuration", err)
	}
	o.Logger = l
	return nil
}
