package registry

import (
	"context"
	"testing"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
)

type fakeAdapter struct {
	provider     canon.ProviderID
	capabilities canon.ProviderCapabilities
	models       []canon.ModelInfo
	discoverErr  error
	discoverHits int
}

func (f *fakeAdapter) Provider() canon.ProviderID { return f.provider }

func (f *fakeAdapter) Capabilities() canon.ProviderCapabilities { return f.capabilities }

func (f *fakeAdapter) Run(ctx context.Context, req canon.ProviderRequest, actx canon.AdapterContext) (canon.ProviderResponse, error) {
	return canon.ProviderResponse{}, nil
}

func (f *fakeAdapter) DiscoverModels(ctx context.Context, actx canon.AdapterContext) ([]canon.ModelInfo, error) {
	f.discoverHits++
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.models, nil
}

func remoteCapable() canon.ProviderCapabilities {
	return canon.ProviderCapabilities{SupportsTools: true, SupportsStructuredOutput: true, SupportsRemoteDiscovery: true}
}

func TestRegisterReplacesExistingBinding(t *testing.T) {
	r := New(canon.ModelCatalog{}, nil)
	first := &fakeAdapter{provider: canon.ProviderOpenAI}
	second := &fakeAdapter{provider: canon.ProviderOpenAI}

	r.Register(first)
	r.Register(second)

	resolved, err := r.ResolveAdapter(canon.ProviderOpenAI)
	if err != nil {
		t.Fatalf("resolve adapter: %v", err)
	}
	if resolved.(*fakeAdapter) != second {
		t.Fatalf("expected second registration to replace the first")
	}
	if len(r.bindings) != 1 {
		t.Fatalf("expected replacement in place, not a second binding, got %d", len(r.bindings))
	}
}

func TestResolveAdapterNotRegistered(t *testing.T) {
	r := New(canon.ModelCatalog{}, nil)
	_, err := r.ResolveAdapter(canon.ProviderOpenAI)
	routingErr, ok := err.(*bridgeerrors.RoutingError)
	if !ok || routingErr.Kind != bridgeerrors.RoutingProviderNotRegistered {
		t.Fatalf("expected provider not registered, got %v", err)
	}
}

func TestResolveProviderHintMustBeRegistered(t *testing.T) {
	cat := canon.ModelCatalog{Models: []canon.ModelInfo{{Provider: canon.ProviderOpenAI, ModelID: "gpt-5-mini"}}}
	r := New(cat, nil)
	r.Register(&fakeAdapter{provider: canon.ProviderOpenAI})

	hint := canon.ProviderAnthropic
	_, err := r.ResolveProvider(canon.ModelRef{ModelID: "gpt-5-mini", ProviderHint: &hint})
	routingErr, ok := err.(*bridgeerrors.RoutingError)
	if !ok || routingErr.Kind != bridgeerrors.RoutingProviderNotRegistered {
		t.Fatalf("expected provider not registered for unregistered hint, got %v", err)
	}
}

func TestResolveProviderFallsBackToDefault(t *testing.T) {
	cat := canon.ModelCatalog{Models: []canon.ModelInfo{{Provider: canon.ProviderOpenAI, ModelID: "gpt-5-mini"}}}
	defaultProvider := canon.ProviderOpenRouter
	r := New(cat, &defaultProvider)
	r.Register(&fakeAdapter{provider: canon.ProviderOpenAI})
	r.Register(&fakeAdapter{provider: canon.ProviderOpenRouter})

	provider, err := r.ResolveProvider(canon.ModelRef{ModelID: "custom/unlisted"})
	if err != nil {
		t.Fatalf("resolve provider: %v", err)
	}
	if provider != canon.ProviderOpenRouter {
		t.Fatalf("expected default provider fallback, got %s", provider)
	}
}

func TestResolveProviderDefaultMustBeRegistered(t *testing.T) {
	cat := canon.ModelCatalog{}
	defaultProvider := canon.ProviderOpenRouter
	r := New(cat, &defaultProvider)

	_, err := r.ResolveProvider(canon.ModelRef{ModelID: "whatever"})
	routingErr, ok := err.(*bridgeerrors.RoutingError)
	if !ok || routingErr.Kind != bridgeerrors.RoutingProviderNotRegistered {
		t.Fatalf("expected provider not registered for unregistered default, got %v", err)
	}
}

func TestResolveProviderAmbiguousPropagates(t *testing.T) {
	cat := canon.ModelCatalog{Models: []canon.ModelInfo{
		{Provider: canon.ProviderOpenAI, ModelID: "shared"},
		{Provider: canon.ProviderAnthropic, ModelID: "shared"},
	}}
	r := New(cat, nil)
	r.Register(&fakeAdapter{provider: canon.ProviderOpenAI})
	r.Register(&fakeAdapter{provider: canon.ProviderAnthropic})

	_, err := r.ResolveProvider(canon.ModelRef{ModelID: "shared"})
	routingErr, ok := err.(*bridgeerrors.RoutingError)
	if !ok || routingErr.Kind != bridgeerrors.RoutingAmbiguousModel {
		t.Fatalf("expected ambiguous model route, got %v", err)
	}
}

func TestDiscoverModelsWithoutRefreshReturnsStaticCatalog(t *testing.T) {
	cat := canon.ModelCatalog{Models: []canon.ModelInfo{{Provider: canon.ProviderOpenAI, ModelID: "gpt-5-mini"}}}
	r := New(cat, nil)
	adapter := &fakeAdapter{provider: canon.ProviderOpenAI, capabilities: remoteCapable()}
	r.Register(adapter)

	got, err := r.DiscoverModels(context.Background(), canon.DiscoveryOptions{Remote: false, RefreshCache: true}, canon.AdapterContext{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got.Models) != 1 {
		t.Fatalf("expected static catalog unchanged, got %#v", got)
	}
	if adapter.discoverHits != 0 {
		t.Fatalf("expected no adapter calls when remote discovery is disabled")
	}
}

func TestDiscoverModelsMergesRemoteConcurrently(t *testing.T) {
	static := canon.ModelCatalog{Models: []canon.ModelInfo{{Provider: canon.ProviderOpenAI, ModelID: "gpt-5-mini"}}}
	r := New(static, nil)

	openai := &fakeAdapter{
		provider:     canon.ProviderOpenAI,
		capabilities: canon.ProviderCapabilities{SupportsRemoteDiscovery: false},
	}
	anthropic := &fakeAdapter{
		provider:     canon.ProviderAnthropic,
		capabilities: remoteCapable(),
		models:       []canon.ModelInfo{{Provider: canon.ProviderAnthropic, ModelID: "claude-3-7-sonnet"}},
	}
	openrouter := &fakeAdapter{
		provider:     canon.ProviderOpenRouter,
		capabilities: remoteCapable(),
		models:       []canon.ModelInfo{{Provider: canon.ProviderOpenRouter, ModelID: "openrouter/auto"}},
	}
	r.Register(openai)
	r.Register(anthropic)
	r.Register(openrouter)

	got, err := r.DiscoverModels(context.Background(), canon.DiscoveryOptions{Remote: true, RefreshCache: true}, canon.AdapterContext{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got.Models) != 3 {
		t.Fatalf("expected 3 merged models, got %#v", got.Models)
	}
	if openai.discoverHits != 0 {
		t.Fatalf("expected no discovery call for a provider without remote discovery support")
	}
	if anthropic.discoverHits != 1 || openrouter.discoverHits != 1 {
		t.Fatalf("expected each remote-capable adapter queried once")
	}
}

func TestDiscoverModelsRespectsIncludeProviderFilter(t *testing.T) {
	static := canon.ModelCatalog{}
	r := New(static, nil)

	anthropic := &fakeAdapter{provider: canon.ProviderAnthropic, capabilities: remoteCapable(), models: []canon.ModelInfo{{Provider: canon.ProviderAnthropic, ModelID: "claude-3-7-sonnet"}}}
	openrouter := &fakeAdapter{provider: canon.ProviderOpenRouter, capabilities: remoteCapable(), models: []canon.ModelInfo{{Provider: canon.ProviderOpenRouter, ModelID: "openrouter/auto"}}}
	r.Register(anthropic)
	r.Register(openrouter)

	got, err := r.DiscoverModels(context.Background(), canon.DiscoveryOptions{
		Remote:          true,
		RefreshCache:    true,
		IncludeProvider: []canon.ProviderID{canon.ProviderAnthropic},
	}, canon.AdapterContext{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got.Models) != 1 || got.Models[0].Provider != canon.ProviderAnthropic {
		t.Fatalf("expected only anthropic models, got %#v", got.Models)
	}
	if openrouter.discoverHits != 0 {
		t.Fatalf("expected filtered-out provider not queried")
	}
}

func TestDiscoverModelsPropagatesAdapterError(t *testing.T) {
	static := canon.ModelCatalog{}
	r := New(static, nil)
	failing := &fakeAdapter{provider: canon.ProviderAnthropic, capabilities: remoteCapable(), discoverErr: &bridgeerrors.CredentialsMissing{Provider: canon.ProviderAnthropic}}
	r.Register(failing)

	_, err := r.DiscoverModels(context.Background(), canon.DiscoveryOptions{Remote: true, RefreshCache: true}, canon.AdapterContext{})
	if _, ok := err.(*bridgeerrors.CredentialsMissing); !ok {
		t.Fatalf("expected CredentialsMissing to propagate, got %v", err)
	}
}
