package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/macho715/wh3/pkg/infrastructure/config"
	"github.com/macho715/wh3/pkg/interfaces/cli/output"
)

// ResolveOptions holds flags for the resolve command
type ResolveOptions struct {
	*RootOptions
	Ontology     string
	File         string
	Strict       bool
	DumpOntology bool
}

// NewResolveCommand creates the resolve command
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve [label...]",
		Short: "Resolve raw location labels to canonical locations",
		Long: `Resolve raw location labels against the ontology and show which rule
matched. Labels come from the arguments and, with --file, one per line.

Example:
  wh3 resolve "M44-A12" "dsv_indoor" "MIR site"
  wh3 resolve --file labels.txt --strict
  wh3 resolve --dump-ontology > ontology.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ontology, "ontology", "", "ontology YAML file (default built-in vocabulary)")
	cmd.Flags().StringVar(&opts.File, "file", "", "file with one label per line")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when a label is unmatched")
	cmd.Flags().BoolVar(&opts.DumpOntology, "dump-ontology", false, "print the effective ontology as YAML")

	return cmd
}

func runResolve(opts *ResolveOptions, args []string, cmd *cobra.Command) error {
	path := opts.Ontology
	if path == "" && opts.Config != nil {
		path = opts.Config.OntologyFile
	}

	if opts.DumpOntology {
		ontology := config.DefaultOntology()
		if path != "" {
			var err error
			if ontology, err = config.LoadOntology(path); err != nil {
				return WrapExitError(ExitCommandError, "failed to load ontology", err)
			}
		}
		if err := ontology.WriteYAML(cmd.OutOrStdout()); err != nil {
			return WrapExitError(ExitCommandError, "failed to write ontology", err)
		}
		return nil
	}

	resolver, err := loadResolver(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load ontology", err)
	}

	labels := append([]string(nil), args...)
	if opts.File != "" {
		fromFile, err := readLabels(opts.File)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read labels", err)
		}
		labels = append(labels, fromFile...)
	}
	if len(labels) == 0 {
		return NewExitError(ExitCommandError, "no labels given")
	}

	rules := resolver.Rules()
	resolutions := make([]output.Resolution, 0, len(labels))
	unmatched := 0
	for _, label := range labels {
		loc, idx := resolver.ResolveWithRule(label)
		r := output.Resolution{Label: label, Location: loc.ID, Kind: loc.Kind.String(), Rule: idx}
		if idx >= 0 {
			r.Pattern = rules[idx].Pattern
		}
		if loc.IsUnmatched() {
			unmatched++
		}
		resolutions = append(resolutions, r)
	}

	if err := output.WriteResolutions(cmd.OutOrStdout(), opts.Format, resolutions); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if opts.Strict && unmatched > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d label(s) unmatched", unmatched))
	}
	return nil
}

func readLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	return labels, scanner.Err()
}
