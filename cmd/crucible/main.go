// Command crucible is a thin front end over the experiment core: it loads
// an experiment configuration, validates it, and reports what would be
// registered. Running experiments stays in library code; functions under
// test and capability containers are compiled into the embedding binary.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-crucible/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crucible",
		Short: "Combinatorial experiment harness for functions under test",
	}
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Load and validate an experiment configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			slog.Info("experiment config is valid",
				"custom_function", cfg.CustomFunction,
				"readers", len(cfg.CustomReaders),
				"evaluators", len(cfg.CustomEvaluators),
				"wrappers", len(cfg.CustomWrappers))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crucible version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
