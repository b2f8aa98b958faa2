// Package bridgeruntime is the module's single public entry point for
// issuing a request: it resolves the target provider through a registry,
// enforces capability requirements before ever making a network call, and
// attaches a best-effort cost estimate to any response the adapter didn't
// already price itself.
package bridgeruntime

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/catalog"
	"github.com/llmbridge/llmbridge/internal/pricing"
	"github.com/llmbridge/llmbridge/internal/provideradapter"
	"github.com/llmbridge/llmbridge/internal/registry"
)

// Runtime is the built, immutable entry point for issuing requests and
// discovering models. Construct one with Builder.
type Runtime struct {
	registry       *registry.Registry
	adapterContext canon.AdapterContext
	pricingTable   *pricing.Table
}

// Builder assembles a Runtime. The zero value is ready to use; call
// WithAdapter for each provider the runtime should be able to route to,
// then Build.
type Builder struct {
	adapters        []provideradapter.Adapter
	staticCatalog   canon.ModelCatalog
	haveCatalog     bool
	defaultProvider *canon.ProviderID
	pricingTable    *pricing.Table
	adapterContext  canon.AdapterContext
}

// NewBuilder starts a Builder seeded with the module's built-in static
// catalog, matching the zero-configuration default the original exposes
// via ProviderRuntime::builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAdapter registers adapter for its declared provider identity.
func (b *Builder) WithAdapter(adapter provideradapter.Adapter) *Builder {
	b.adapters = append(b.adapters, adapter)
	return b
}

// WithDefaultProvider sets the provider an unresolvable model id falls
// back to.
func (b *Builder) WithDefaultProvider(provider canon.ProviderID) *Builder {
	b.defaultProvider = &provider
	return b
}

// WithModelCatalog overrides the built-in static catalog.
func (b *Builder) WithModelCatalog(cat canon.ModelCatalog) *Builder {
	b.staticCatalog = cat
	b.haveCatalog = true
	return b
}

// WithPricingTable enables best-effort cost estimation for responses the
// adapter didn't already price.
func (b *Builder) WithPricingTable(table pricing.Table) *Builder {
	b.pricingTable = &table
	return b
}

// WithAdapterContext sets the per-call context (credentials, metadata)
// threaded into every adapter invocation.
func (b *Builder) WithAdapterContext(actx canon.AdapterContext) *Builder {
	b.adapterContext = actx
	return b
}

// Build finalizes the Runtime. The resulting registry and catalog are
// immutable: later calls to Run or DiscoverModels never mutate Builder
// state or retain a reference back to it.
func (b *Builder) Build() *Runtime {
	staticCatalog := b.staticCatalog
	if !b.haveCatalog {
		staticCatalog = catalog.BuiltinStaticCatalog()
	}

	reg := registry.New(staticCatalog, b.defaultProvider)
	for _, adapter := range b.adapters {
		reg.Register(adapter)
	}

	return &Runtime{
		registry:       reg,
		adapterContext: b.adapterContext,
		pricingTable:   b.pricingTable,
	}
}

// Run resolves request.Model to a registered adapter, rejects requests
// the resolved adapter cannot satisfy (tools or structured output beyond
// its declared capabilities), invokes it, and attaches an estimated cost
// when the adapter's response didn't already carry one and a pricing
// table is configured.
func (r *Runtime) Run(ctx context.Context, request canon.ProviderRequest) (canon.ProviderResponse, error) {
	provider, err := r.registry.ResolveProvider(request.Model)
	if err != nil {
		return canon.ProviderResponse{}, err
	}
	adapter, err := r.registry.ResolveAdapter(provider)
	if err != nil {
		return canon.ProviderResponse{}, err
	}

	capabilities := adapter.Capabilities()
	if len(request.Tools) > 0 && !capabilities.SupportsTools {
		return canon.ProviderResponse{}, &bridgeerrors.CapabilityMismatch{Provider: provider, Model: request.Model.ModelID, Capability: "tools"}
	}
	if _, isText := request.ResponseFormat.(canon.ResponseFormatText); request.ResponseFormat != nil && !isText && !capabilities.SupportsStructuredOutput {
		return canon.ProviderResponse{}, &bridgeerrors.CapabilityMismatch{Provider: provider, Model: request.Model.ModelID, Capability: "structured_output"}
	}

	response, err := adapter.Run(ctx, request, r.adapterContext)
	if err != nil {
		return canon.ProviderResponse{}, err
	}

	if response.Cost == nil && r.pricingTable != nil {
		cost, warnings := pricing.EstimateCost(response.Provider, response.Model, response.Usage, *r.pricingTable)
		response.Cost = cost
		response.Warnings = append(response.Warnings, warnings...)
	}

	return response, nil
}

// DiscoverModels refreshes or returns the model catalog; see
// registry.Registry.DiscoverModels for the exact semantics.
func (r *Runtime) DiscoverModels(ctx context.Context, opts canon.DiscoveryOptions) (canon.ModelCatalog, error) {
	return r.registry.DiscoverModels(ctx, opts, r.adapterContext)
}

// ExportCatalogJSON renders cat as stable, pretty-printed JSON.
func (r *Runtime) ExportCatalogJSON(cat canon.ModelCatalog) ([]byte, error) {
	return catalog.ExportJSON(cat)
}

// DiscoverModelsBatch runs DiscoverModels concurrently for each entry in
// optsBatch, preserving input order in the returned slice. It exists for
// callers that need several independently-scoped discovery views (for
// example, per-tenant IncludeProvider filters) in one round trip rather
// than forcing them to either serialize the calls or hand-roll their own
// errgroup; a single failing call cancels the rest and its error is
// returned.
func (r *Runtime) DiscoverModelsBatch(ctx context.Context, optsBatch []canon.DiscoveryOptions) ([]canon.ModelCatalog, error) {
	results := make([]canon.ModelCatalog, len(optsBatch))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, opts := range optsBatch {
		i, opts := i, opts
		group.Go(func() error {
			catalog, err := r.DiscoverModels(groupCtx, opts)
			if err != nil {
				return err
			}
			results[i] = catalog
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
