package provideradapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
)

// Adapter wraps one provider's translator with the HTTP mechanics needed to
// actually call it: credential resolution, header injection, transport
// invocation, and HTTP-status classification.
type Adapter interface {
	Provider() canon.ProviderID
	Capabilities() canon.ProviderCapabilities
	Run(ctx context.Context, req canon.ProviderRequest, actx canon.AdapterContext) (canon.ProviderResponse, error)
	DiscoverModels(ctx context.Context, actx canon.AdapterContext) ([]canon.ModelInfo, error)
}

// credentialRejectedStatuses lists the HTTP statuses that indicate the
// supplied credential itself was rejected, rather than some other request
// problem. OpenRouter's gateway uses 403 for this in addition to 401; the
// other two providers use 401 only.
func classifyHTTPStatus(provider canon.ProviderID, status int, body []byte, header http.Header, model string, credentialRejectedStatuses ...int) error {
	requestID := firstNonEmptyHeader(header, "x-request-id", "request-id")
	message, bodyRequestID := extractErrorMessage(body)
	if requestID == "" {
		requestID = bodyRequestID
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	for _, rejected := range credentialRejectedStatuses {
		if status == rejected {
			return &bridgeerrors.CredentialsRejected{Provider: provider, RequestID: requestID, Message: message}
		}
	}

	statusCopy := status
	return &bridgeerrors.ProviderProtocolError{
		Provider:  provider,
		Status:    &statusCopy,
		RequestID: requestID,
		Model:     model,
		Message:   message,
	}
}

func firstNonEmptyHeader(header http.Header, names ...string) string {
	for _, name := range names {
		if v := header.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// wireErrorEnvelope is the common shape of {"error": {"message": ...}}
// bodies shared by OpenAI, Anthropic, and OpenRouter error responses.
type wireErrorEnvelope struct {
	Error *struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func extractErrorMessage(body []byte) (message string, requestID string) {
	var envelope wireErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return "", ""
	}
	requestID = envelope.Error.RequestID
	if requestID == "" {
		requestID = envelope.RequestID
	}
	return envelope.Error.Message, requestID
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

func mergeWarnings(encodeWarnings, decodeWarnings []canon.RuntimeWarning) []canon.RuntimeWarning {
	if len(encodeWarnings) == 0 {
		return decodeWarnings
	}
	merged := make([]canon.RuntimeWarning, 0, len(encodeWarnings)+len(decodeWarnings))
	merged = append(merged, encodeWarnings...)
	merged = append(merged, decodeWarnings...)
	return merged
}
