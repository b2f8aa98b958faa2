package provideradapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/transport"
	"github.com/llmbridge/llmbridge/internal/translate/openrouter"
)

const (
	openRouterDefaultBaseURL = "https://openrouter.ai"
	openRouterAPIKeyEnv      = "OPENROUTER_API_KEY"
)

// OpenRouterAdapter wraps the OpenRouter translator with credential
// resolution and HTTP invocation against the Chat Completions API. Unlike
// the OpenAI/Anthropic adapters it carries translator construction options,
// since OpenRouter's translator is stateful.
type OpenRouterAdapter struct {
	client      *transport.Client
	translator  openrouter.Translator
	baseURL     string
	apiKey      string
	envFallback bool
	httpReferer string
	xTitle      string
}

// NewOpenRouterAdapter builds an adapter. apiKey may be empty to defer
// resolution to AdapterContext metadata or the environment. httpReferer and
// xTitle are optional OpenRouter-recommended attribution headers and are
// omitted when empty.
func NewOpenRouterAdapter(client *transport.Client, apiKey string, envFallback bool, options openrouter.Options, httpReferer, xTitle string) *OpenRouterAdapter {
	return &OpenRouterAdapter{
		client:      client,
		translator:  openrouter.New(options),
		baseURL:     openRouterDefaultBaseURL,
		apiKey:      strings.TrimSpace(apiKey),
		envFallback: envFallback,
		httpReferer: strings.TrimSpace(httpReferer),
		xTitle:      strings.TrimSpace(xTitle),
	}
}

// WithBaseURL overrides the default endpoint, for tests against httptest
// servers.
func (a *OpenRouterAdapter) WithBaseURL(baseURL string) *OpenRouterAdapter {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = openRouterDefaultBaseURL
	}
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

func (a *OpenRouterAdapter) Provider() canon.ProviderID { return canon.ProviderOpenRouter }

func (a *OpenRouterAdapter) Capabilities() canon.ProviderCapabilities {
	return canon.ProviderCapabilities{
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsThinking:         true,
		SupportsRemoteDiscovery:  true,
	}
}

func (a *OpenRouterAdapter) chatCompletionsURL() string { return a.baseURL + "/api/v1/chat/completions" }
func (a *OpenRouterAdapter) modelsURL() string           { return a.baseURL + "/api/v1/models" }

func (a *OpenRouterAdapter) headers(apiKey string) map[string]string {
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + apiKey,
	}
	if a.httpReferer != "" {
		headers["HTTP-Referer"] = a.httpReferer
	}
	if a.xTitle != "" {
		headers["X-Title"] = a.xTitle
	}
	return headers
}

func (a *OpenRouterAdapter) Run(ctx context.Context, req canon.ProviderRequest, actx canon.AdapterContext) (canon.ProviderResponse, error) {
	apiKey, err := resolveCredential(a.apiKey, actx, openRouterAPIKeyEnv, a.envFallback)
	if err != nil {
		return canon.ProviderResponse{}, withProvider(err, canon.ProviderOpenRouter)
	}

	encoded, err := a.translator.Encode(req)
	if err != nil {
		return canon.ProviderResponse{}, err
	}

	httpReq := transport.Request{
		Method:   http.MethodPost,
		URL:      a.chatCompletionsURL(),
		Provider: canon.ProviderOpenRouter,
		Body:     encoded.Payload,
		Headers:  a.headers(apiKey),
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return canon.ProviderResponse{}, err
	}

	// OpenRouter's gateway can return HTTP 200 with an embedded error
	// object in the body instead of a non-2xx status.
	if isSuccessStatus(resp.StatusCode) {
		if message, ok := openrouter.DetectErrorEnvelope(resp.Body); ok {
			return canon.ProviderResponse{}, classifyHTTPStatus(canon.ProviderOpenRouter, http.StatusOK, []byte(message), resp.Header, req.Model.ModelID)
		}
	} else {
		return canon.ProviderResponse{}, classifyHTTPStatus(canon.ProviderOpenRouter, resp.StatusCode, resp.Body, resp.Header, req.Model.ModelID, http.StatusUnauthorized, http.StatusForbidden)
	}

	reqCtx := canon.RequestContext{ResponseFormat: req.ResponseFormat}
	decoded, err := a.translator.Decode(resp.Body, reqCtx)
	if err != nil {
		return canon.ProviderResponse{}, err
	}
	decoded.Warnings = mergeWarnings(encoded.Warnings, decoded.Warnings)
	return decoded, nil
}

func (a *OpenRouterAdapter) DiscoverModels(ctx context.Context, actx canon.AdapterContext) ([]canon.ModelInfo, error) {
	apiKey, credErr := resolveCredential(a.apiKey, actx, openRouterAPIKeyEnv, a.envFallback)
	headers := map[string]string{"Content-Type": "application/json"}
	if credErr == nil {
		headers = a.headers(apiKey)
	}

	httpReq := transport.Request{
		Method:   http.MethodGet,
		URL:      a.modelsURL(),
		Provider: canon.ProviderOpenRouter,
		Headers:  headers,
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(resp.StatusCode) {
		return nil, classifyHTTPStatus(canon.ProviderOpenRouter, resp.StatusCode, resp.Body, resp.Header, "", http.StatusUnauthorized, http.StatusForbidden)
	}

	return openrouter.DecodeModelsList(resp.Body)
}
