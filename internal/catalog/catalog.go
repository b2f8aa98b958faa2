// Package catalog maintains the flat, deterministically-ordered list of
// known models that the registry routes requests against: the built-in
// seed catalog shipped with the module, the static-first merge policy used
// when remote discovery augments it, and the provider-resolution lookup
// the registry runs for every unhinted model reference.
package catalog

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/pretty"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
)

// BuiltinStaticCatalog returns the minimal seed catalog shipped with the
// module: one flagship model per built-in provider, enough for routing and
// the CLI demo to work before any remote discovery has run.
func BuiltinStaticCatalog() canon.ModelCatalog {
	displayName := func(s string) *string { return &s }
	return canon.ModelCatalog{
		Models: []canon.ModelInfo{
			{
				Provider:                 canon.ProviderOpenAI,
				ModelID:                  "gpt-5-mini",
				DisplayName:              displayName("GPT-5 Mini"),
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
			{
				Provider:                 canon.ProviderAnthropic,
				ModelID:                  "claude-3-7-sonnet",
				DisplayName:              displayName("Claude 3.7 Sonnet"),
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
			{
				Provider:                 canon.ProviderOpenRouter,
				ModelID:                  "openrouter/auto",
				DisplayName:              displayName("OpenRouter Auto"),
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
		},
	}
}

type modelKey struct {
	provider string
	modelID  string
}

func keyOf(m canon.ModelInfo) modelKey {
	return modelKey{provider: m.Provider.String(), modelID: m.ModelID}
}

// MergeStaticAndRemoteCatalog combines a static seed catalog with a
// freshly discovered remote one. Static entries always win on conflict;
// a remote entry for the same (provider, model_id) only fills in fields
// the static entry left nil, it never overwrites a value the static
// catalog already set. Remote-only models are appended. The result is
// sorted deterministically by provider then model id.
func MergeStaticAndRemoteCatalog(static, remote canon.ModelCatalog) canon.ModelCatalog {
	merged := make([]canon.ModelInfo, 0, len(static.Models)+len(remote.Models))
	index := make(map[modelKey]int, len(static.Models))

	seenStatic := make(map[modelKey]struct{}, len(static.Models))
	for _, model := range static.Models {
		key := keyOf(model)
		if _, dup := seenStatic[key]; dup {
			continue
		}
		seenStatic[key] = struct{}{}
		index[key] = len(merged)
		merged = append(merged, model)
	}

	seenRemote := make(map[modelKey]struct{}, len(remote.Models))
	for _, model := range remote.Models {
		key := keyOf(model)
		if _, dup := seenRemote[key]; dup {
			continue
		}
		seenRemote[key] = struct{}{}

		if i, ok := index[key]; ok {
			fillMissingOptionalMetadata(&merged[i], model)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, model)
	}

	sortModels(merged)
	return canon.ModelCatalog{Models: merged}
}

func fillMissingOptionalMetadata(target *canon.ModelInfo, source canon.ModelInfo) {
	if target.DisplayName == nil {
		target.DisplayName = source.DisplayName
	}
	if target.ContextWindow == nil {
		target.ContextWindow = source.ContextWindow
	}
	if target.MaxOutputTokens == nil {
		target.MaxOutputTokens = source.MaxOutputTokens
	}
}

func sortModels(models []canon.ModelInfo) {
	sort.SliceStable(models, func(i, j int) bool {
		order := canon.CompareProviderIDs(models[i].Provider, models[j].Provider)
		if order != 0 {
			return order < 0
		}
		return models[i].ModelID < models[j].ModelID
	})
}

// ResolveModelProvider finds the provider a model id routes to. With no
// hint, a model that resolves to exactly one provider routes there;
// anything else (zero or more than one candidate) is an error. A hint
// that matches one of the candidates wins outright, even when other
// providers also carry the model id; a hint that matches none of them
// fails as a mismatch when there was exactly one unambiguous candidate,
// or as an ambiguous route when there were several. Model lookups are
// case-sensitive: the catalog never normalizes case.
func ResolveModelProvider(catalog canon.ModelCatalog, modelID string, providerHint *canon.ProviderID) (canon.ProviderID, error) {
	candidates := uniqueProvidersForModel(catalog, modelID)
	if len(candidates) == 0 {
		return canon.ProviderID{}, &bridgeerrors.RoutingError{Kind: bridgeerrors.RoutingUnknownModel, ModelID: modelID}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return canon.CompareProviderIDs(candidates[i], candidates[j]) < 0
	})

	if providerHint != nil {
		for _, candidate := range candidates {
			if candidate.Equal(*providerHint) {
				return candidate, nil
			}
		}
		if len(candidates) == 1 {
			return canon.ProviderID{}, &bridgeerrors.RoutingError{
				Kind:     bridgeerrors.RoutingProviderHintMismatch,
				ModelID:  modelID,
				Hint:     *providerHint,
				Resolved: candidates[0],
			}
		}
		return canon.ProviderID{}, &bridgeerrors.RoutingError{
			Kind:       bridgeerrors.RoutingAmbiguousModel,
			ModelID:    modelID,
			Candidates: candidates,
		}
	}

	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return canon.ProviderID{}, &bridgeerrors.RoutingError{
		Kind:       bridgeerrors.RoutingAmbiguousModel,
		ModelID:    modelID,
		Candidates: candidates,
	}
}

func uniqueProvidersForModel(catalog canon.ModelCatalog, modelID string) []canon.ProviderID {
	var providers []canon.ProviderID
	for _, model := range catalog.Models {
		if model.ModelID != modelID {
			continue
		}
		found := false
		for _, p := range providers {
			if p.Equal(model.Provider) {
				found = true
				break
			}
		}
		if !found {
			providers = append(providers, model.Provider)
		}
	}
	return providers
}

// ExportJSON renders catalog as stable, pretty-printed JSON: models sorted
// by provider then model id, object keys sorted, two-space indent. Two
// catalogs with the same models in different orders always export
// byte-identical output.
func ExportJSON(catalog canon.ModelCatalog) ([]byte, error) {
	normalized := canon.ModelCatalog{Models: append([]canon.ModelInfo(nil), catalog.Models...)}
	sortModels(normalized.Models)

	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Message: err.Error()}
	}
	return pretty.PrettyOptions(raw, &pretty.Options{Indent: "  ", SortKeys: true}), nil
}
