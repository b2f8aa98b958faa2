package bridgecli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/llmbridge/llmbridge/internal/bridgeconfig"
	"github.com/llmbridge/llmbridge/internal/canon"
)

func newRunCmd() *cobra.Command {
	var (
		providerHint   string
		model          string
		message        string
		responseFormat string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send one canonical request to a provider and print the response",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(model) == "" {
				return fmt.Errorf("--model is required")
			}
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("--message is required")
			}

			cfg, err := bridgeconfig.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			runtime, err := buildRuntime(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}

			format, err := parseResponseFormat(responseFormat)
			if err != nil {
				return err
			}

			var hint *canon.ProviderID
			if strings.TrimSpace(providerHint) != "" {
				parsed, err := canon.ParseProviderID(providerHint)
				if err != nil {
					return fmt.Errorf("--provider: %w", err)
				}
				hint = &parsed
			}

			request := canon.ProviderRequest{
				Model:          canon.ModelRef{ProviderHint: hint, ModelID: model},
				Messages:       []canon.Message{{Role: canon.RoleUser, Content: []canon.ContentPart{canon.TextPart{Text: message}}}},
				ResponseFormat: format,
			}

			response, err := runtime.Run(cmd.Context(), request)
			if err != nil {
				return err
			}

			printResponse(cmd, response)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerHint, "provider", "", "Provider hint (openai, anthropic, openrouter, or a registered custom name)")
	cmd.Flags().StringVar(&model, "model", "", "Model id (required)")
	cmd.Flags().StringVar(&message, "message", "", "User message (required)")
	cmd.Flags().StringVar(&responseFormat, "response-format", "text", "Response format: text, json_object")

	return cmd
}

func parseResponseFormat(value string) (canon.ResponseFormat, error) {
	switch strings.TrimSpace(value) {
	case "", "text":
		return canon.ResponseFormatText{}, nil
	case "json_object":
		return canon.ResponseFormatJSONObject{}, nil
	default:
		return nil, fmt.Errorf("--response-format: unsupported value %q", value)
	}
}

func printResponse(cmd *cobra.Command, response canon.ProviderResponse) {
	out := cmd.OutOrStdout()
	for _, part := range response.Output.Content {
		if text, ok := part.(canon.TextPart); ok {
			fmt.Fprintln(out, text.Text)
		}
	}
	if response.Cost != nil {
		logger.Info("estimated cost", "provider", response.Provider.String(), "model", response.Model, "total_cost", response.Cost.TotalCost, "currency", response.Cost.Currency)
	}
	for _, warning := range response.Warnings {
		logger.Warn("runtime warning", "code", warning.Code, "message", warning.Message)
	}
}
