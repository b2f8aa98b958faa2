// Package corebridge is the module's public façade: a thin re-export of
// internal/bridgeruntime's Builder/Runtime and internal/bridgeerrors' typed
// error taxonomy, so a caller never needs to import an internal package
// directly to use the library.
package corebridge

import (
	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/bridgeruntime"
	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/pricing"
	"github.com/llmbridge/llmbridge/internal/provideradapter"
)

// Builder assembles a Runtime: register an Adapter per provider, then
// Build. See bridgeruntime.Builder for the full method set.
type Builder = bridgeruntime.Builder

// NewBuilder starts a Builder seeded with the module's built-in static
// catalog.
func NewBuilder() *Builder {
	return bridgeruntime.NewBuilder()
}

// Runtime is the built, immutable entry point for issuing requests and
// discovering models.
type Runtime = bridgeruntime.Runtime

// Adapter is implemented by every provider integration registered with a
// Builder.
type Adapter = provideradapter.Adapter

// PricingTable estimates cost from token usage against configured rates.
type PricingTable = pricing.Table

// PricingRule is one per-provider, per-model-pattern rate entry.
type PricingRule = pricing.Rule

// NewPricingTable builds a PricingTable from an ordered set of rules.
func NewPricingTable(rules []PricingRule) PricingTable {
	return pricing.NewTable(rules)
}

// Canonical request/response/model types re-exported for callers that only
// need the public surface, not the full internal/canon package.
type (
	ProviderID       = canon.ProviderID
	ProviderRequest  = canon.ProviderRequest
	ProviderResponse = canon.ProviderResponse
	ModelRef         = canon.ModelRef
	ModelInfo        = canon.ModelInfo
	ModelCatalog     = canon.ModelCatalog
	Message          = canon.Message
	DiscoveryOptions = canon.DiscoveryOptions
	AdapterContext   = canon.AdapterContext
	RuntimeWarning   = canon.RuntimeWarning
	CostBreakdown    = canon.CostBreakdown
)

// Built-in provider identities.
var (
	ProviderOpenAI     = canon.ProviderOpenAI
	ProviderAnthropic  = canon.ProviderAnthropic
	ProviderOpenRouter = canon.ProviderOpenRouter
)

// NewCustomProviderID mints a ProviderID for a caller-registered adapter
// beyond the three built-ins.
func NewCustomProviderID(name string) (ProviderID, error) {
	return canon.NewCustomProviderID(name)
}

// The error taxonomy §7 of the specification describes, re-exported so
// callers can errors.As against them without importing internal/bridgeerrors.
type (
	ConfigError           = bridgeerrors.ConfigError
	CredentialsMissing    = bridgeerrors.CredentialsMissing
	CredentialsRejected   = bridgeerrors.CredentialsRejected
	RoutingError          = bridgeerrors.RoutingError
	CapabilityMismatch    = bridgeerrors.CapabilityMismatch
	TransportError        = bridgeerrors.TransportError
	ProviderProtocolError = bridgeerrors.ProviderProtocolError
	SerializationError    = bridgeerrors.SerializationError
	CostCalculation       = bridgeerrors.CostCalculation
)
