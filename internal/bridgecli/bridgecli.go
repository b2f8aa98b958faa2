// Package bridgecli wires Cobra subcommands to the library's public
// Builder/Runtime; it is a thin controller with no business logic of its
// own.
package bridgecli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/llmbridge/llmbridge/internal/bridgelog"
)

// NewRootCmd creates the root command and registers every subcommand.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "llmbridge",
		Short:         "Canonical LLM provider bridge CLI",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			setLogger(bridgelog.New(bridgelog.Options{Level: level}))
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (info level)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newDiscoverCmd())
	root.AddCommand(newCatalogCmd())
	root.AddCommand(newConfigCmd())

	return root
}

var logger = bridgelog.Discard()

func setLogger(l *slog.Logger) {
	logger = l
}
