package bridgecli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmbridge/llmbridge/internal/bridgeconfig"
	"github.com/llmbridge/llmbridge/internal/canon"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the model catalog",
	}
	cmd.AddCommand(newCatalogExportCmd())
	cmd.AddCommand(newCatalogShowCmd())
	return cmd
}

func newCatalogExportCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the model catalog as deterministic, sorted-key JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bridgeconfig.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			runtime, err := buildRuntime(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}

			catalog, err := runtime.DiscoverModels(cmd.Context(), canon.DiscoveryOptions{Remote: remote, RefreshCache: remote})
			if err != nil {
				return err
			}

			out, err := runtime.ExportCatalogJSON(catalog)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Refresh from registered providers before exporting")
	return cmd
}

func newCatalogShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a human-readable summary of the static model catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bridgeconfig.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			runtime, err := buildRuntime(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}

			catalog, err := runtime.DiscoverModels(cmd.Context(), canon.DiscoveryOptions{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, model := range catalog.Models {
				name := model.ModelID
				if model.DisplayName != nil {
					name = *model.DisplayName
				}
				fmt.Fprintf(out, "%-12s %-28s tools=%v structured_output=%v\n", model.Provider.String(), name, model.SupportsTools, model.SupportsStructuredOutput)
			}
			return nil
		},
	}
	return cmd
}
