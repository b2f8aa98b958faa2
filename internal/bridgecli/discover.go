package bridgecli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmbridge/llmbridge/internal/bridgeconfig"
	"github.com/llmbridge/llmbridge/internal/canon"
)

func newDiscoverCmd() *cobra.Command {
	var (
		remote    bool
		refresh   bool
		providers []string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover the model catalog, optionally refreshing from registered providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bridgeconfig.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			runtime, err := buildRuntime(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}

			include, err := parseProviderFilter(providers)
			if err != nil {
				return err
			}

			catalog, err := runtime.DiscoverModels(cmd.Context(), canon.DiscoveryOptions{
				Remote:          remote,
				RefreshCache:    refresh,
				IncludeProvider: include,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, model := range catalog.Models {
				fmt.Fprintf(out, "%s\t%s\n", model.Provider.String(), model.ModelID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Include remote provider discovery (takes effect only together with --refresh)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Refresh from remote providers instead of returning the static catalog (takes effect only together with --remote)")
	cmd.Flags().StringSliceVar(&providers, "provider", nil, "Restrict discovery to these providers (repeatable)")

	return cmd
}

func parseProviderFilter(names []string) ([]canon.ProviderID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]canon.ProviderID, 0, len(names))
	for _, name := range names {
		id, err := canon.ParseProviderID(name)
		if err != nil {
			return nil, fmt.Errorf("--provider %q: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
