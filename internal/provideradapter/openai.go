package provideradapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/transport"
	"github.com/llmbridge/llmbridge/internal/translate/openai"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com"
	openAIAPIKeyEnv      = "OPENAI_API_KEY"
)

// OpenAIAdapter wraps the OpenAI translator with credential resolution and
// HTTP invocation against the Responses API.
type OpenAIAdapter struct {
	client      *transport.Client
	translator  openai.Translator
	baseURL     string
	apiKey      string
	envFallback bool
}

// NewOpenAIAdapter builds an adapter. apiKey may be empty to defer
// resolution to AdapterContext metadata or the environment.
func NewOpenAIAdapter(client *transport.Client, apiKey string, envFallback bool) *OpenAIAdapter {
	return &OpenAIAdapter{
		client:      client,
		translator:  openai.Translator{},
		baseURL:     openAIDefaultBaseURL,
		apiKey:      strings.TrimSpace(apiKey),
		envFallback: envFallback,
	}
}

// WithBaseURL overrides the default endpoint, for tests against httptest
// servers.
func (a *OpenAIAdapter) WithBaseURL(baseURL string) *OpenAIAdapter {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

func (a *OpenAIAdapter) Provider() canon.ProviderID { return canon.ProviderOpenAI }

func (a *OpenAIAdapter) Capabilities() canon.ProviderCapabilities {
	return canon.ProviderCapabilities{
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsThinking:         false,
		SupportsRemoteDiscovery:  false,
	}
}

func (a *OpenAIAdapter) responsesURL() string { return a.baseURL + "/v1/responses" }

func (a *OpenAIAdapter) Run(ctx context.Context, req canon.ProviderRequest, actx canon.AdapterContext) (canon.ProviderResponse, error) {
	apiKey, err := resolveCredential(a.apiKey, actx, openAIAPIKeyEnv, a.envFallback)
	if err != nil {
		return canon.ProviderResponse{}, withProvider(err, canon.ProviderOpenAI)
	}

	encoded, err := a.translator.Encode(req)
	if err != nil {
		return canon.ProviderResponse{}, err
	}

	httpReq := transport.Request{
		Method:   http.MethodPost,
		URL:      a.responsesURL(),
		Provider: canon.ProviderOpenAI,
		Body:     encoded.Payload,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + apiKey,
		},
	}

	resp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return canon.ProviderResponse{}, err
	}
	if !isSuccessStatus(resp.StatusCode) {
		return canon.ProviderResponse{}, classifyHTTPStatus(canon.ProviderOpenAI, resp.StatusCode, resp.Body, resp.Header, req.Model.ModelID, http.StatusUnauthorized)
	}

	reqCtx := canon.RequestContext{ResponseFormat: req.ResponseFormat}
	decoded, err := a.translator.Decode(resp.Body, reqCtx)
	if err != nil {
		return canon.ProviderResponse{}, err
	}
	decoded.Warnings = mergeWarnings(encoded.Warnings, decoded.Warnings)
	return decoded, nil
}

// DiscoverModels returns an empty catalog: the original's OpenAI adapter
// declares supports_remote_discovery=false and never calls a model-list
// endpoint, so the static catalog is the only source of OpenAI models.
func (a *OpenAIAdapter) DiscoverModels(ctx context.Context, actx canon.AdapterContext) ([]canon.ModelInfo, error) {
	return nil, nil
}
