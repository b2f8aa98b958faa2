// Package registry binds provider adapters to provider identities and
// resolves which adapter should handle a given model. It owns no adapter
// state beyond the bindings themselves; routing decisions are made against
// the static catalog supplied at construction. Catalogs refreshed via
// discovery are returned to the caller and not kept by the registry.
package registry

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/catalog"
	"github.com/llmbridge/llmbridge/internal/provideradapter"
)

type binding struct {
	provider canon.ProviderID
	adapter  provideradapter.Adapter
}

// Registry binds provider adapters to provider identities and resolves
// routing against a static model catalog. A Registry is built once by the
// runtime's builder and never mutated concurrently with lookups; the zero
// value is not usable, construct one with New.
type Registry struct {
	bindings        []binding
	staticCatalog   canon.ModelCatalog
	defaultProvider *canon.ProviderID
}

// New constructs a Registry against a static seed catalog. defaultProvider,
// when non-nil, is the provider a model that the catalog cannot resolve
// falls back to, provided that provider is also registered.
func New(staticCatalog canon.ModelCatalog, defaultProvider *canon.ProviderID) *Registry {
	return &Registry{staticCatalog: staticCatalog, defaultProvider: defaultProvider}
}

// NewWithBuiltinCatalog constructs a Registry seeded with the module's
// built-in static catalog and no default provider, mirroring the
// zero-configuration default the runtime builder falls back to.
func NewWithBuiltinCatalog() *Registry {
	return New(catalog.BuiltinStaticCatalog(), nil)
}

// Register binds adapter to its declared provider identity, replacing any
// adapter previously registered for that provider. Discovery fan-out does
// not follow registration order: it visits adapters in provider order
// (canon.CompareProviderIDs).
func (r *Registry) Register(adapter provideradapter.Adapter) {
	provider := adapter.Provider()
	for i, existing := range r.bindings {
		if existing.provider.Equal(provider) {
			r.bindings[i].adapter = adapter
			return
		}
	}
	r.bindings = append(r.bindings, binding{provider: provider, adapter: adapter})
}

// ResolveAdapter returns the adapter registered for provider, or a
// RoutingProviderNotRegistered error if none was registered.
func (r *Registry) ResolveAdapter(provider canon.ProviderID) (provideradapter.Adapter, error) {
	for _, b := range r.bindings {
		if b.provider.Equal(provider) {
			return b.adapter, nil
		}
	}
	return nil, &bridgeerrors.RoutingError{Kind: bridgeerrors.RoutingProviderNotRegistered, Provider: provider}
}

// ResolveProvider determines which registered adapter should handle model.
// A provider hint on model must itself be a registered provider, regardless
// of what the catalog says about that model id. Without a hint, the static
// catalog is consulted; a model the catalog cannot resolve falls back to
// the configured default provider, if any and if it is registered.
func (r *Registry) ResolveProvider(model canon.ModelRef) (canon.ProviderID, error) {
	if model.ProviderHint != nil {
		if _, err := r.ResolveAdapter(*model.ProviderHint); err != nil {
			return canon.ProviderID{}, err
		}
		return *model.ProviderHint, nil
	}

	provider, err := catalog.ResolveModelProvider(r.staticCatalog, model.ModelID, nil)
	if err == nil {
		if _, adapterErr := r.ResolveAdapter(provider); adapterErr != nil {
			return canon.ProviderID{}, adapterErr
		}
		return provider, nil
	}

	routingErr, ok := err.(*bridgeerrors.RoutingError)
	if ok && routingErr.Kind == bridgeerrors.RoutingUnknownModel && r.defaultProvider != nil {
		if _, adapterErr := r.ResolveAdapter(*r.defaultProvider); adapterErr != nil {
			return canon.ProviderID{}, adapterErr
		}
		return *r.defaultProvider, nil
	}

	return canon.ProviderID{}, err
}

// DiscoverModels returns the registry's model catalog. When opts.Remote is
// false, or opts.RefreshCache is false, the static catalog is returned
// unchanged with no adapter calls made. Otherwise every registered adapter
// that declares SupportsRemoteDiscovery and, when opts.IncludeProvider is
// non-empty, is named in it, is queried concurrently; the results are
// merged with the static catalog static-first and returned. The registry
// itself holds no cached copy of a refreshed catalog — callers that want
// to reuse a refreshed result hold onto what this call returns.
func (r *Registry) DiscoverModels(ctx context.Context, opts canon.DiscoveryOptions, actx canon.AdapterContext) (canon.ModelCatalog, error) {
	if !opts.Remote || !opts.RefreshCache {
		return r.staticCatalog, nil
	}

	ordered := make([]binding, len(r.bindings))
	copy(ordered, r.bindings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return canon.CompareProviderIDs(ordered[i].provider, ordered[j].provider) < 0
	})

	results := make([][]canon.ModelInfo, len(ordered))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, b := range ordered {
		if !includesProvider(opts.IncludeProvider, b.provider) {
			continue
		}
		if !b.adapter.Capabilities().SupportsRemoteDiscovery {
			continue
		}
		i, b := i, b
		group.Go(func() error {
			models, err := b.adapter.DiscoverModels(groupCtx, actx)
			if err != nil {
				return err
			}
			results[i] = models
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return canon.ModelCatalog{}, err
	}

	remote := canon.ModelCatalog{}
	for _, models := range results {
		remote.Models = append(remote.Models, models...)
	}

	return catalog.MergeStaticAndRemoteCatalog(r.staticCatalog, remote), nil
}

func includesProvider(filter []canon.ProviderID, provider canon.ProviderID) bool {
	if len(filter) == 0 {
		return true
	}
	for _, candidate := range filter {
		if candidate.Equal(provider) {
			return true
		}
	}
	return false
}
