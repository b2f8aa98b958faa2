package provideradapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/transport"
	"github.com/llmbridge/llmbridge/internal/translate/anthropic"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicAPIKeyEnv      = "ANTHROPIC_API_KEY"
	anthropicVersion        = "2023-06-01"
)

// AnthropicAdapter wraps the Anthropic translator with credential
// resolution and HTTP invocation against the Messages API.
type AnthropicAdapter struct {
	client      *transport.Client
	translator  anthropic.Translator
	baseURL     string
	apiKey      string
	envFallback bool
}

// NewAnthropicAdapter builds an adapter. apiKey may be empty to defer
// resolution to AdapterContext metadata or the environment.
func NewAnthropicAdapter(client *transport.Client, apiKey string, envFallback bool) *AnthropicAdapter {
	return &AnthropicAdapter{
		client:      client,
		translator:  anthropic.Translator{},
		baseURL:     anthropicDefaultBaseURL,
		apiKey:      strings.TrimSpace(apiKey),
		envFallback: envFallback,
	}
}

// WithBaseURL overrides the default endpoint, for tests against httptest
// servers.
func (a *AnthropicAdapter) WithBaseURL(baseURL string) *AnthropicAdapter {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

func (a *AnthropicAdapter) Provider() canon.ProviderID { return canon.ProviderAnthropic }

func (a *AnthropicAdapter) Capabilities() canon.ProviderCapabilities {
	return canon.ProviderCapabilities{
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsThinking:         true,
		SupportsRemoteDiscovery:  true,
	}
}

func (a *AnthropicAdapter) messagesURL() string { return a.baseURL + "/v1/messages" }
func (a *AnthropicAdapter) modelsURL() string    { return a.baseURL + "/v1/models" }

func (a *AnthropicAdapter) authHeaders(apiKey string) map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}
}

func (a *AnthropicAdapter) Run(ctx context.Context, req canon.ProviderRequest, actx canon.AdapterContext) (canon.ProviderResponse, error) {
	apiKey, err := resolveCredential(a.apiKey, actx, anthropicAPIKeyEnv, a.envFallback)
	if err != nil {
		return canon.ProviderResponse{}, withProvider(err, canon.ProviderAnthropic)
	}

	encoded, err := a.translator.Encode(req)
	if err != nil {
		return canon.ProviderResponse{}, err
	}

	httpReq := transport.Request{
		Method:   http.MethodPost,
		URL:      a.messagesURL(),
		Provider: canon.ProviderAnthropic,
		Body:     encoded.Payload,
		Headers:  a.authHeaders(apiKey),
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return canon.ProviderResponse{}, err
	}
	if !isSuccessStatus(resp.StatusCode) {
		return canon.ProviderResponse{}, classifyHTTPStatus(canon.ProviderAnthropic, resp.StatusCode, resp.Body, resp.Header, req.Model.ModelID, http.StatusUnauthorized)
	}

	reqCtx := canon.RequestContext{ResponseFormat: req.ResponseFormat}
	decoded, err := a.translator.Decode(resp.Body, reqCtx)
	if err != nil {
		return canon.ProviderResponse{}, err
	}
	decoded.Warnings = mergeWarnings(encoded.Warnings, decoded.Warnings)
	return decoded, nil
}

func (a *AnthropicAdapter) DiscoverModels(ctx context.Context, actx canon.AdapterContext) ([]canon.ModelInfo, error) {
	apiKey, err := resolveCredential(a.apiKey, actx, anthropicAPIKeyEnv, a.envFallback)
	if err != nil {
		return nil, withProvider(err, canon.ProviderAnthropic)
	}

	httpReq := transport.Request{
		Method:   http.MethodGet,
		URL:      a.modelsURL(),
		Provider: canon.ProviderAnthropic,
		Headers:  a.authHeaders(apiKey),
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(resp.StatusCode) {
		return nil, classifyHTTPStatus(canon.ProviderAnthropic, resp.StatusCode, resp.Body, resp.Header, "", http.StatusUnauthorized)
	}

	return anthropic.DecodeModelsList(resp.Body, a.Capabilities())
}
