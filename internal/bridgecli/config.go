package bridgecli

import (
	"github.com/spf13/cobra"

	"github.com/llmbridge/llmbridge/internal/bridgeconfig"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print merged configuration as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bridgeconfig.Write(cmd.OutOrStdout())
		},
	}
}
