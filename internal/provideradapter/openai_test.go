package provideradapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/transport"
)

func newTestClient() *transport.Client {
	return transport.New(http.DefaultClient, 5*time.Second, transport.RetryPolicy{})
}

func basicRequest(modelID string) canon.ProviderRequest {
	return canon.ProviderRequest{
		Model: canon.ModelRef{ModelID: modelID},
		Messages: []canon.Message{
			{Role: canon.RoleUser, Content: []canon.ContentPart{canon.TextPart{Text: "hello"}}},
		},
	}
}

func TestOpenAIAdapterRunSendsAuthAndDecodesResponse(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "completed",
			"model": "gpt-5",
			"output": [{"type":"message","role":"assistant","content":[{"type":"output_text","text":"hi"}]}],
			"usage": {"input_tokens": 1, "output_tokens": 1, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(newTestClient(), "test-key", false).WithBaseURL(srv.URL)
	resp, err := adapter.Run(context.Background(), basicRequest("gpt-5"), canon.AdapterContext{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody["model"] != "gpt-5" {
		t.Fatalf("unexpected model: %#v", gotBody["model"])
	}
	if resp.FinishReason != canon.FinishStop {
		t.Fatalf("unexpected finish reason: %s", resp.FinishReason)
	}
}

func TestOpenAIAdapterMissingCredentialsErrors(t *testing.T) {
	adapter := NewOpenAIAdapter(newTestClient(), "", false)
	_, err := adapter.Run(context.Background(), basicRequest("gpt-5"), canon.AdapterContext{})
	var missing *bridgeerrors.CredentialsMissing
	if !asMissing(err, &missing) {
		t.Fatalf("expected CredentialsMissing, got %v", err)
	}
	if missing.Provider != canon.ProviderOpenAI {
		t.Fatalf("unexpected provider: %s", missing.Provider)
	}
}

func TestOpenAIAdapter401MapsToCredentialsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-request-id", "req-1")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(newTestClient(), "bad-key", false).WithBaseURL(srv.URL)
	_, err := adapter.Run(context.Background(), basicRequest("gpt-5"), canon.AdapterContext{})

	rejected, ok := err.(*bridgeerrors.CredentialsRejected)
	if !ok {
		t.Fatalf("expected CredentialsRejected, got %T: %v", err, err)
	}
	if rejected.RequestID != "req-1" {
		t.Fatalf("unexpected request id: %s", rejected.RequestID)
	}
}

func TestOpenAIAdapter400MapsToProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(newTestClient(), "test-key", false).WithBaseURL(srv.URL)
	_, err := adapter.Run(context.Background(), basicRequest("gpt-5"), canon.AdapterContext{})

	protoErr, ok := err.(*bridgeerrors.ProviderProtocolError)
	if !ok {
		t.Fatalf("expected ProviderProtocolError, got %T: %v", err, err)
	}
	if protoErr.Status == nil || *protoErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected status: %v", protoErr.Status)
	}
}

func TestOpenAIAdapterCredentialFromContextMetadata(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"completed","model":"gpt-5","output":[],"usage":{"input_tokens":0,"output_tokens":0,"total_tokens":0}}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(newTestClient(), "", false).WithBaseURL(srv.URL)
	actx := canon.AdapterContext{Metadata: map[string]string{"api_key": "ctx-key"}}
	if _, err := adapter.Run(context.Background(), basicRequest("gpt-5"), actx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if gotAuth != "Bearer ctx-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestOpenAIAdapterDiscoverModelsReturnsEmpty(t *testing.T) {
	adapter := NewOpenAIAdapter(newTestClient(), "test-key", false)
	models, err := adapter.DiscoverModels(context.Background(), canon.AdapterContext{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("expected no models, got %d", len(models))
	}
}

func asMissing(err error, target **bridgeerrors.CredentialsMissing) bool {
	m, ok := err.(*bridgeerrors.CredentialsMissing)
	if !ok {
		return false
	}
	*target = m
	return true
}
