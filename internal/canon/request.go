package canon

import "encoding/json"

// ModelRef names the model a request targets, optionally pinning the
// provider it must route through.
type ModelRef struct {
	ProviderHint *ProviderID
	ModelID      string
}

// ToolDefinition describes one callable tool exposed to the model.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage
}

// ProviderRequest is the canonical, provider-agnostic single-turn request.
type ProviderRequest struct {
	Model            ModelRef
	Messages         []Message
	Tools            []ToolDefinition
	ToolChoice       ToolChoice
	ResponseFormat   ResponseFormat
	Temperature      *float64
	TopP             *float64
	MaxOutputTokens  *int
	Stop             []string
	Metadata         map[string]string
}

// RequestContext carries the information a translator's Decode needs beyond
// the raw wire payload: the originally requested ResponseFormat, so
// structured-output parsing stays deterministic without a side channel.
type RequestContext struct {
	ResponseFormat ResponseFormat
}

// AssistantOutput is the canonical model output: ordered content parts plus
// an optional best-effort parse of structured output.
type AssistantOutput struct {
	Content           []ContentPart
	StructuredOutput  json.RawMessage
}

// Usage reports token accounting for one response. Fields are optional
// because providers do not uniformly report all of them.
type Usage struct {
	InputTokens       *uint64
	OutputTokens      *uint64
	ReasoningTokens   *uint64
	CachedInputTokens *uint64
	TotalTokens       *uint64
}

// DerivedTotalTokens returns the explicit total if present, else the sum of
// input and output tokens (treating absent fields as zero).
func (u Usage) DerivedTotalTokens() uint64 {
	if u.TotalTokens != nil {
		return *u.TotalTokens
	}
	var total uint64
	if u.InputTokens != nil {
		total += *u.InputTokens
	}
	if u.OutputTokens != nil {
		total += *u.OutputTokens
	}
	return total
}

// PricingSource records how a CostBreakdown was derived.
type PricingSource string

const (
	PricingConfigured      PricingSource = "configured"
	PricingProviderReported PricingSource = "provider_reported"
	PricingMixed           PricingSource = "mixed"
)

// CostBreakdown is an optional cost estimate attached to a response.
type CostBreakdown struct {
	Currency       string
	InputCost      float64
	OutputCost     float64
	ReasoningCost  *float64
	TotalCost      float64
	PricingSource  PricingSource
}

// RuntimeWarning is a non-fatal, stably-coded diagnostic.
type RuntimeWarning struct {
	Code    string
	Message string
}

// ProviderResponse is the canonical, provider-agnostic single-turn
// response.
type ProviderResponse struct {
	Output               AssistantOutput
	Usage                Usage
	Cost                 *CostBreakdown
	Provider             ProviderID
	Model                string
	RawProviderResponse  json.RawMessage
	FinishReason         FinishReason
	Warnings             []RuntimeWarning
}

// ModelInfo describes one model entry in a catalog.
type ModelInfo struct {
	Provider                 ProviderID `json:"provider"`
	ModelID                  string     `json:"model_id"`
	DisplayName              *string    `json:"display_name,omitempty"`
	ContextWindow            *int       `json:"context_window,omitempty"`
	MaxOutputTokens          *int       `json:"max_output_tokens,omitempty"`
	SupportsTools            bool       `json:"supports_tools"`
	SupportsStructuredOutput bool       `json:"supports_structured_output"`
}

// ModelCatalog is a flat, deterministically-ordered list of known models.
type ModelCatalog struct {
	Models []ModelInfo `json:"models"`
}

// DiscoveryOptions controls ModelCatalog discovery.
type DiscoveryOptions struct {
	Remote          bool
	IncludeProvider []ProviderID
	RefreshCache    bool
}

// ProviderCapabilities declares what one adapter supports.
type ProviderCapabilities struct {
	SupportsTools             bool
	SupportsStructuredOutput  bool
	SupportsThinking          bool
	SupportsRemoteDiscovery   bool
}

// AdapterContext carries small, caller-supplied, per-call context (such as
// a request-scoped credential override) from the runtime into an adapter
// without widening the canonical request.
type AdapterContext struct {
	Metadata map[string]string
}

// MetadataValue returns ctx.Metadata[key] and whether it was present, safe
// to call on a zero-value AdapterContext.
func (ctx AdapterContext) MetadataValue(key string) (string, bool) {
	if ctx.Metadata == nil {
		return "", false
	}
	v, ok := ctx.Metadata[key]
	return v, ok
}
