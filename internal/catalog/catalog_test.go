package catalog

import (
	"encoding/json"
	"testing"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func model(provider canon.ProviderID, modelID string, displayName *string, contextWindow, maxOutput *int, tools, structured bool) canon.ModelInfo {
	return canon.ModelInfo{
		Provider:                 provider,
		ModelID:                  modelID,
		DisplayName:              displayName,
		ContextWindow:            contextWindow,
		MaxOutputTokens:          maxOutput,
		SupportsTools:            tools,
		SupportsStructuredOutput: structured,
	}
}

func TestMergeStaticAndRemoteCatalogStaticFirst(t *testing.T) {
	static := canon.ModelCatalog{Models: []canon.ModelInfo{
		model(canon.ProviderOpenAI, "gpt-5-mini", strPtr("Static GPT"), intPtr(128_000), nil, true, true),
		model(canon.ProviderOpenAI, "gpt-5-mini", strPtr("Static Duplicate"), intPtr(200_000), intPtr(10_000), false, false),
		model(canon.ProviderAnthropic, "claude-3-7-sonnet", strPtr("Claude"), nil, nil, true, true),
	}}
	remote := canon.ModelCatalog{Models: []canon.ModelInfo{
		model(canon.ProviderOpenAI, "gpt-5-mini", strPtr("Remote GPT"), intPtr(999_999), intPtr(16_000), false, false),
		model(canon.ProviderOpenRouter, "openrouter/auto", strPtr("Router Auto"), intPtr(1_000_000), intPtr(8_192), true, true),
		model(canon.ProviderOpenRouter, "openrouter/auto", strPtr("Router Duplicate"), intPtr(2_000_000), intPtr(16_384), false, false),
	}}

	merged := MergeStaticAndRemoteCatalog(static, remote)
	if len(merged.Models) != 3 {
		t.Fatalf("expected 3 models, got %d", len(merged.Models))
	}

	if merged.Models[0].Provider != canon.ProviderOpenAI || merged.Models[0].ModelID != "gpt-5-mini" {
		t.Fatalf("unexpected first model: %#v", merged.Models[0])
	}
	if *merged.Models[0].DisplayName != "Static GPT" {
		t.Fatalf("static display name should win, got %q", *merged.Models[0].DisplayName)
	}
	if *merged.Models[0].ContextWindow != 128_000 {
		t.Fatalf("static context window should win, got %d", *merged.Models[0].ContextWindow)
	}
	if *merged.Models[0].MaxOutputTokens != 16_000 {
		t.Fatalf("remote should fill missing max output tokens, got %d", *merged.Models[0].MaxOutputTokens)
	}

	if merged.Models[1].Provider != canon.ProviderAnthropic {
		t.Fatalf("unexpected second model provider: %s", merged.Models[1].Provider)
	}

	if merged.Models[2].Provider != canon.ProviderOpenRouter || merged.Models[2].ModelID != "openrouter/auto" {
		t.Fatalf("unexpected third model: %#v", merged.Models[2])
	}
	if *merged.Models[2].DisplayName != "Router Auto" {
		t.Fatalf("first remote duplicate should win, got %q", *merged.Models[2].DisplayName)
	}
}

func TestResolveModelProviderDeterministic(t *testing.T) {
	cat := canon.ModelCatalog{Models: []canon.ModelInfo{
		model(canon.ProviderOpenAI, "shared-model", nil, nil, nil, true, true),
		model(canon.ProviderAnthropic, "shared-model", nil, nil, nil, true, true),
		model(canon.ProviderOpenRouter, "shared-model", nil, nil, nil, true, true),
		model(canon.ProviderOpenRouter, "router-only", nil, nil, nil, true, true),
	}}

	only, err := ResolveModelProvider(cat, "router-only", nil)
	if err != nil || only != canon.ProviderOpenRouter {
		t.Fatalf("expected openrouter, got %v err=%v", only, err)
	}

	anthropicHint := canon.ProviderAnthropic
	withHint, err := ResolveModelProvider(cat, "shared-model", &anthropicHint)
	if err != nil || withHint != canon.ProviderAnthropic {
		t.Fatalf("expected anthropic, got %v err=%v", withHint, err)
	}

	openaiHint := canon.ProviderOpenAI
	_, err = ResolveModelProvider(cat, "router-only", &openaiHint)
	routingErr, ok := err.(*bridgeerrors.RoutingError)
	if !ok || routingErr.Kind != bridgeerrors.RoutingProviderHintMismatch {
		t.Fatalf("expected provider hint mismatch, got %v", err)
	}
	if routingErr.Resolved != canon.ProviderOpenRouter {
		t.Fatalf("unexpected resolved provider: %s", routingErr.Resolved)
	}

	_, err = ResolveModelProvider(cat, "shared-model", nil)
	routingErr, ok = err.(*bridgeerrors.RoutingError)
	if !ok || routingErr.Kind != bridgeerrors.RoutingAmbiguousModel {
		t.Fatalf("expected ambiguous model route, got %v", err)
	}
	if len(routingErr.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(routingErr.Candidates))
	}

	_, err = ResolveModelProvider(cat, "missing", nil)
	routingErr, ok = err.(*bridgeerrors.RoutingError)
	if !ok || routingErr.Kind != bridgeerrors.RoutingUnknownModel {
		t.Fatalf("expected unknown model, got %v", err)
	}

	_, err = ResolveModelProvider(cat, "SHARED-MODEL", nil)
	routingErr, ok = err.(*bridgeerrors.RoutingError)
	if !ok || routingErr.Kind != bridgeerrors.RoutingUnknownModel {
		t.Fatalf("model lookup should be case sensitive, got %v", err)
	}
}

func TestExportJSONStableOutput(t *testing.T) {
	unsorted := canon.ModelCatalog{Models: []canon.ModelInfo{
		model(canon.ProviderOpenRouter, "m2", strPtr("router"), nil, nil, true, true),
		model(canon.ProviderAnthropic, "m1", strPtr("anthropic"), nil, nil, true, true),
		model(canon.ProviderOpenAI, "m3", strPtr("openai"), nil, nil, true, true),
	}}
	shuffled := canon.ModelCatalog{Models: []canon.ModelInfo{
		model(canon.ProviderAnthropic, "m1", strPtr("anthropic"), nil, nil, true, true),
		model(canon.ProviderOpenAI, "m3", strPtr("openai"), nil, nil, true, true),
		model(canon.ProviderOpenRouter, "m2", strPtr("router"), nil, nil, true, true),
	}}

	first, err := ExportJSON(unsorted)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	second, err := ExportJSON(shuffled)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("export should be order-independent:\n%s\nvs\n%s", first, second)
	}

	var parsed struct {
		Models []struct {
			Provider string `json:"provider"`
			ModelID  string `json:"model_id"`
		} `json:"models"`
	}
	if err := json.Unmarshal(first, &parsed); err != nil {
		t.Fatalf("export should be valid json: %v", err)
	}
	if len(parsed.Models) != 3 {
		t.Fatalf("expected 3 models, got %d", len(parsed.Models))
	}
	if parsed.Models[0].Provider != "openai" || parsed.Models[1].Provider != "anthropic" || parsed.Models[2].Provider != "openrouter" {
		t.Fatalf("unexpected provider order: %#v", parsed.Models)
	}
}

func TestBuiltinStaticCatalogContainsMinimalSeed(t *testing.T) {
	cat := BuiltinStaticCatalog()
	if len(cat.Models) != 3 {
		t.Fatalf("expected 3 seed models, got %d", len(cat.Models))
	}
	want := map[canon.ProviderID]string{
		canon.ProviderOpenAI:     "gpt-5-mini",
		canon.ProviderAnthropic:  "claude-3-7-sonnet",
		canon.ProviderOpenRouter: "openrouter/auto",
	}
	for provider, modelID := range want {
		found := false
		for _, m := range cat.Models {
			if m.Provider.Equal(provider) && m.ModelID == modelID {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing seed model for %s: %s", provider, modelID)
		}
	}
}
