package bridgecli

import (
	"github.com/llmbridge/llmbridge/internal/bridgeconfig"
	"github.com/llmbridge/llmbridge/internal/bridgeruntime"
	"github.com/llmbridge/llmbridge/internal/provideradapter"
	"github.com/llmbridge/llmbridge/internal/transport"
	"github.com/llmbridge/llmbridge/internal/translate/openrouter"
)

// buildRuntime wires one provideradapter per configured provider into a
// bridgeruntime.Builder, using cfg's retry policy and pricing table. A
// provider with no configuration section simply isn't registered; the
// registry then rejects requests hinting at it the same way it rejects any
// other unregistered provider.
func buildRuntime(cfg *bridgeconfig.Config) (*bridgeruntime.Runtime, error) {
	builder := bridgeruntime.NewBuilder()
	retry := cfg.RetryPolicy()

	if openaiCfg, ok := cfg.ProviderByName("openai"); ok {
		client := transport.New(nil, openaiCfg.RequestTimeout, retry)
		adapter := provideradapter.NewOpenAIAdapter(client, openaiCfg.APIKey, true)
		if openaiCfg.BaseURL != "" {
			adapter.WithBaseURL(openaiCfg.BaseURL)
		}
		builder.WithAdapter(adapter)
	}

	if anthropicCfg, ok := cfg.ProviderByName("anthropic"); ok {
		client := transport.New(nil, anthropicCfg.RequestTimeout, retry)
		adapter := provideradapter.NewAnthropicAdapter(client, anthropicCfg.APIKey, true)
		if anthropicCfg.BaseURL != "" {
			adapter.WithBaseURL(anthropicCfg.BaseURL)
		}
		builder.WithAdapter(adapter)
	}

	if openrouterCfg, ok := cfg.ProviderByName("openrouter"); ok {
		client := transport.New(nil, openrouterCfg.RequestTimeout, retry)
		adapter := provideradapter.NewOpenRouterAdapter(client, openrouterCfg.APIKey, true, openrouter.Options{}, "", "")
		if openrouterCfg.BaseURL != "" {
			adapter.WithBaseURL(openrouterCfg.BaseURL)
		}
		builder.WithAdapter(adapter)
	}

	if defaultProvider, err := cfg.DefaultProviderID(); err == nil {
		builder.WithDefaultProvider(defaultProvider)
	}

	table, err := cfg.PricingTable()
	if err != nil {
		return nil, err
	}
	builder.WithPricingTable(table)

	return builder.Build(), nil
}
