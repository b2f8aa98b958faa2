// Package translate holds the shared translator contract; the per-provider
// wire formats live in its openai, anthropic, and openrouter subpackages.
// Every translator is a pure function pair over values — no I/O, no
// reference to the registry, runtime, or pricing.
package translate

import "github.com/llmbridge/llmbridge/internal/canon"

// EncodeResult is what a translator's Encode produces: the provider wire
// payload ready to send as an HTTP request body, plus any warnings raised
// while encoding (e.g. a dropped Thinking part).
type EncodeResult struct {
	Payload  []byte
	Warnings []canon.RuntimeWarning
}

// Translator is the pure encode/decode contract every provider
// implementation satisfies. Equal canonical inputs must produce
// byte-identical Payload values; equal wire payloads must produce
// structurally equal canonical outputs and identical warning lists.
type Translator interface {
	// Encode turns a canonical request into the provider's wire payload.
	// It never performs I/O. Any canonical intent that cannot be
	// preserved either errors (a *bridgeerrors.ProviderProtocolError or
	// *bridgeerrors.SerializationError) or is dropped with a stable
	// warning — never silently.
	Encode(req canon.ProviderRequest) (EncodeResult, error)

	// Decode turns a provider wire response body into a canonical
	// response. reqCtx carries the ResponseFormat the request asked for,
	// so structured-output parsing does not need a side channel.
	Decode(body []byte, reqCtx canon.RequestContext) (canon.ProviderResponse, error)
}
