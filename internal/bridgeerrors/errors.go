// Package bridgeerrors defines the deterministic, enumerated failure kinds
// raised by configuration, routing, translation, transport, and the
// runtime. Every exported type implements error; callers use errors.As to
// recover the concrete kind and its context. Nothing here wraps a failure
// into an opaque generic error — the runtime propagates these unchanged.
package bridgeerrors

import (
	"fmt"
	"strings"

	"github.com/llmbridge/llmbridge/internal/canon"
)

// ConfigError reports a builder misconfiguration caught before any call is
// attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// CredentialsMissing reports that no credential source produced an API key
// for provider, listing the environment variables the caller could set.
type CredentialsMissing struct {
	Provider      canon.ProviderID
	EnvCandidates []string
}

func (e *CredentialsMissing) Error() string {
	if len(e.EnvCandidates) == 0 {
		return fmt.Sprintf("credentials missing for provider %s", e.Provider)
	}
	return fmt.Sprintf("credentials missing for provider %s (tried env: %s)", e.Provider, strings.Join(e.EnvCandidates, ", "))
}

// CredentialsRejected reports that the provider's auth layer rejected the
// supplied credential (typically an HTTP 401).
type CredentialsRejected struct {
	Provider  canon.ProviderID
	RequestID string
	Message   string
}

func (e *CredentialsRejected) Error() string {
	return fmt.Sprintf("credentials rejected by %s%s: %s", e.Provider, requestIDSuffix(e.RequestID), e.Message)
}

// RoutingKind enumerates the distinct ways resolving a model to a provider
// can fail.
type RoutingKind int

const (
	RoutingUnknownModel RoutingKind = iota
	RoutingAmbiguousModel
	RoutingProviderNotRegistered
	RoutingProviderHintMismatch
)

func (k RoutingKind) String() string {
	switch k {
	case RoutingUnknownModel:
		return "unknown_model"
	case RoutingAmbiguousModel:
		return "ambiguous_model"
	case RoutingProviderNotRegistered:
		return "provider_not_registered"
	case RoutingProviderHintMismatch:
		return "provider_hint_mismatch"
	default:
		return "unknown"
	}
}

// RoutingError reports a failure to resolve a ModelRef to a registered
// adapter.
type RoutingError struct {
	Kind       RoutingKind
	ModelID    string
	Provider   canon.ProviderID   // set for ProviderNotRegistered
	Hint       canon.ProviderID   // set for ProviderHintMismatch
	Resolved   canon.ProviderID   // set for ProviderHintMismatch
	Candidates []canon.ProviderID // set for AmbiguousModel
}

func (e *RoutingError) Error() string {
	switch e.Kind {
	case RoutingUnknownModel:
		return fmt.Sprintf("routing error: model not found: %s", e.ModelID)
	case RoutingAmbiguousModel:
		names := make([]string, 0, len(e.Candidates))
		for _, c := range e.Candidates {
			names = append(names, c.String())
		}
		return fmt.Sprintf("routing error: ambiguous model route for %s: %s", e.ModelID, strings.Join(names, ", "))
	case RoutingProviderNotRegistered:
		return fmt.Sprintf("routing error: provider not registered: %s", e.Provider)
	case RoutingProviderHintMismatch:
		return fmt.Sprintf("routing error: provider hint mismatch for model %s: hint=%s resolved=%s", e.ModelID, e.Hint, e.Resolved)
	default:
		return "routing error"
	}
}

// CapabilityMismatch reports that a request required a capability the
// resolved provider's adapter does not declare.
type CapabilityMismatch struct {
	Provider   canon.ProviderID
	Model      string
	Capability string
}

func (e *CapabilityMismatch) Error() string {
	return fmt.Sprintf("capability mismatch [provider=%s, model=%s, capability=%s]", e.Provider, e.Model, e.Capability)
}

// TransportKind enumerates the ways the HTTP transport primitive can fail.
type TransportKind int

const (
	TransportConnect TransportKind = iota
	TransportTimeout
	TransportCancelled
	TransportIO
)

func (k TransportKind) String() string {
	switch k {
	case TransportConnect:
		return "connect"
	case TransportTimeout:
		return "timeout"
	case TransportCancelled:
		return "cancelled"
	case TransportIO:
		return "io"
	default:
		return "unknown"
	}
}

// TransportError reports a failure below the HTTP response-status layer:
// a connection failure, timeout, cancellation, or body I/O error.
type TransportError struct {
	Kind     TransportKind
	Provider canon.ProviderID
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error [provider=%s, kind=%s]: %s", e.Provider, e.Kind, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderProtocolError covers both HTTP-status-level failures and
// well-formed provider error bodies, as well as translator-detected
// semantic violations of canonical intent. Status and RequestID are
// present only when the failure originated at the HTTP layer.
type ProviderProtocolError struct {
	Provider  canon.ProviderID
	Status    *int
	RequestID string
	Model     string
	Message   string
}

func (e *ProviderProtocolError) Error() string {
	var status string
	if e.Status != nil {
		status = fmt.Sprintf(", status=%d", *e.Status)
	}
	return fmt.Sprintf("provider protocol error [provider=%s%s%s]: %s", e.Provider, status, requestIDSuffix(e.RequestID), e.Message)
}

// SerializationLocation distinguishes an encode-time failure (canonical
// intent could not be turned into wire JSON) from a decode-time one
// (provider JSON could not be turned into canonical values).
type SerializationLocation string

const (
	LocationEncode SerializationLocation = "encode"
	LocationDecode SerializationLocation = "decode"
)

// SerializationError reports malformed provider JSON or canonical intent
// that cannot be represented on the wire.
type SerializationError struct {
	Location SerializationLocation
	Provider canon.ProviderID
	Message  string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error [location=%s, provider=%s]: %s", e.Location, e.Provider, e.Message)
}

// CostCalculation is reserved: pricing failures are always downgraded to
// warnings by the runtime and this error is never returned from Run. It
// exists so the taxonomy matches the specification's closed error set.
type CostCalculation struct {
	Message string
}

func (e *CostCalculation) Error() string {
	return fmt.Sprintf("cost calculation error: %s", e.Message)
}

func requestIDSuffix(requestID string) string {
	if requestID == "" {
		return ""
	}
	return fmt.Sprintf(", request_id=%s", requestID)
}
