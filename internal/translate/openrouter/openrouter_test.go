package openrouter

import (
	"encoding/json"
	"testing"

	"github.com/llmbridge/llmbridge/internal/canon"
)

func basicRequest() canon.ProviderRequest {
	return canon.ProviderRequest{
		Model: canon.ModelRef{ModelID: "openai/gpt-5"},
		Messages: []canon.Message{
			{Role: canon.RoleUser, Content: []canon.ContentPart{canon.TextPart{Text: "hello"}}},
		},
	}
}

func TestEncodeBasicRequestIsDeterministic(t *testing.T) {
	req := basicRequest()

	first, err := (Translator{}).Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := (Translator{}).Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(first.Payload) != string(second.Payload) {
		t.Fatalf("encode is not deterministic:\n%s\nvs\n%s", first.Payload, second.Payload)
	}

	var wire map[string]any
	if err := json.Unmarshal(first.Payload, &wire); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if wire["model"] != "openai/gpt-5" {
		t.Fatalf("unexpected model: %#v", wire["model"])
	}
	if wire["stream"] != false {
		t.Fatalf("expected stream:false, got %#v", wire["stream"])
	}
}

func TestEncodeUsesModelsArrayWithFallbacks(t *testing.T) {
	req := basicRequest()
	translator := New(Options{FallbackModels: []string{"anthropic/claude-opus-4"}})

	result, err := translator.Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(result.Payload, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := wire["model"]; present {
		t.Fatalf("expected no singular model key when fallbacks are set, got %#v", wire["model"])
	}
	models, ok := wire["models"].([]any)
	if !ok || len(models) != 2 || models[0] != "openai/gpt-5" || models[1] != "anthropic/claude-opus-4" {
		t.Fatalf("unexpected models array: %#v", wire["models"])
	}
}

func TestEncodeWarnsOnTemperatureAndTopPTogether(t *testing.T) {
	req := basicRequest()
	temp := 0.5
	topP := 0.9
	req.Temperature = &temp
	req.TopP = &topP

	result, err := (Translator{}).Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !hasWarning(result.Warnings, warnBothTemperatureAndTopPSet) {
		t.Fatalf("expected %s warning, got %v", warnBothTemperatureAndTopPSet, result.Warnings)
	}
}

func TestEncodeDropsThinkingWithWarning(t *testing.T) {
	req := basicRequest()
	req.Messages = append(req.Messages, canon.Message{
		Role:    canon.RoleAssistant,
		Content: []canon.ContentPart{canon.ThinkingPart{Text: "reasoning..."}, canon.TextPart{Text: "done"}},
	})

	result, err := (Translator{}).Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !hasWarning(result.Warnings, warnDroppedThinkingOnEncode) {
		t.Fatalf("expected %s warning, got %v", warnDroppedThinkingOnEncode, result.Warnings)
	}
}

func TestEncodeInjectsAdapterOptions(t *testing.T) {
	req := basicRequest()
	seed := int64(42)
	user := "user-123"
	translator := New(Options{Seed: &seed, User: &user, Route: strPtr("fallback")})

	result, err := translator.Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(result.Payload, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire["seed"] != float64(42) {
		t.Fatalf("expected seed 42, got %#v", wire["seed"])
	}
	if wire["user"] != "user-123" {
		t.Fatalf("expected user-123, got %#v", wire["user"])
	}
	if wire["route"] != "fallback" {
		t.Fatalf("expected route fallback, got %#v", wire["route"])
	}
}

func TestEncodeRejectsInvalidRoute(t *testing.T) {
	req := basicRequest()
	translator := New(Options{Route: strPtr("bogus")})
	if _, err := translator.Encode(req); err == nil {
		t.Fatal("expected an error for an invalid route option")
	}
}

func TestEncodeRejectsImageConfigOption(t *testing.T) {
	req := basicRequest()
	translator := New(Options{ImageConfig: json.RawMessage(`{"a":1}`)})
	if _, err := translator.Encode(req); err == nil {
		t.Fatal("expected an error for image_config in non-streaming canonical mode")
	}
}

func TestEncodeToolChoiceSpecificRequiresDeclaredTool(t *testing.T) {
	req := basicRequest()
	req.ToolChoice = canon.ToolChoiceSpecific{Name: "lookup"}
	if _, err := (Translator{}).Encode(req); err == nil {
		t.Fatal("expected an error for tool_choice specific with no declared tools")
	}

	req.Tools = []canon.ToolDefinition{{Name: "lookup", ParametersSchema: json.RawMessage(`{"type":"object"}`)}}
	result, err := (Translator{}).Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(result.Payload, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	choice, ok := wire["tool_choice"].(map[string]any)
	if !ok || choice["type"] != "function" {
		t.Fatalf("unexpected tool_choice: %#v", wire["tool_choice"])
	}
}

func TestEncodeToolMessageRequiresToolDefinition(t *testing.T) {
	req := basicRequest()
	req.Messages = append(req.Messages, canon.Message{
		Role:    canon.RoleTool,
		Content: []canon.ContentPart{canon.ToolResultPart{ToolCallID: "call_1", Content: []canon.ContentPart{canon.TextPart{Text: "result"}}}},
	})
	if _, err := (Translator{}).Encode(req); err == nil {
		t.Fatal("expected an error for a tool message with no declared tools")
	}
}

func TestDecodeTextResponse(t *testing.T) {
	body := []byte(`{
		"model": "openai/gpt-5",
		"choices": [
			{"finish_reason": "stop", "message": {"role": "assistant", "content": "hi there"}}
		],
		"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
	}`)
	resp, err := (Translator{}).Decode(body, canon.RequestContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FinishReason != canon.FinishStop {
		t.Fatalf("expected stop, got %s", resp.FinishReason)
	}
	text, ok := resp.Output.Content[0].(canon.TextPart)
	if !ok || text.Text != "hi there" {
		t.Fatalf("unexpected content: %#v", resp.Output.Content)
	}
	if resp.Usage.InputTokens == nil || *resp.Usage.InputTokens != 10 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestDecodeToolCallsSetsFinishReason(t *testing.T) {
	body := []byte(`{
		"model": "openai/gpt-5",
		"choices": [
			{"finish_reason": "tool_calls", "message": {"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": "{\"q\":\"go\"}"}}
			]}}
		],
		"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
	}`)
	resp, err := (Translator{}).Decode(body, canon.RequestContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FinishReason != canon.FinishToolCalls {
		t.Fatalf("expected tool_calls, got %s", resp.FinishReason)
	}
	call, ok := resp.Output.Content[0].(canon.ToolCallPart)
	if !ok || call.Name != "lookup" {
		t.Fatalf("unexpected content: %#v", resp.Output.Content)
	}
}

func TestDecodeReasoningProducesThinkingPartAndUsage(t *testing.T) {
	body := []byte(`{
		"model": "openai/gpt-5",
		"choices": [
			{"finish_reason": "tool_calls", "message": {"role": "assistant", "content": "{\"ok\":true}", "reasoning": "short rationale", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": "{\"q\":\"go\"}"}}
			]}}
		],
		"usage": {
			"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19,
			"prompt_tokens_details": {"cached_tokens": 2},
			"completion_tokens_details": {"reasoning_tokens": 3}
		}
	}`)
	resp, err := (Translator{}).Decode(body, canon.RequestContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Output.Content) != 3 {
		t.Fatalf("expected 3 content parts, got %d: %#v", len(resp.Output.Content), resp.Output.Content)
	}
	thinking, ok := resp.Output.Content[2].(canon.ThinkingPart)
	if !ok || thinking.Text != "short rationale" || thinking.Provider == nil || !thinking.Provider.Equal(canon.ProviderOpenRouter) {
		t.Fatalf("unexpected trailing content part: %#v", resp.Output.Content[2])
	}
	if resp.Usage.ReasoningTokens == nil || *resp.Usage.ReasoningTokens != 3 {
		t.Fatalf("unexpected reasoning tokens: %v", resp.Usage.ReasoningTokens)
	}
}

func TestDecodeReasoningDetailsFallbackWhenReasoningStringAbsent(t *testing.T) {
	body := []byte(`{
		"model": "openai/gpt-5",
		"choices": [
			{"finish_reason": "stop", "message": {"role": "assistant", "content": "hi", "reasoning_details": [
				{"text": "step one"}, {"text": "step two"}
			]}}
		],
		"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
	}`)
	resp, err := (Translator{}).Decode(body, canon.RequestContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	thinking, ok := resp.Output.Content[len(resp.Output.Content)-1].(canon.ThinkingPart)
	if !ok || thinking.Text != "step one\nstep two" {
		t.Fatalf("unexpected trailing content part: %#v", resp.Output.Content)
	}
}

func TestDecodeInvalidToolArgumentsWarns(t *testing.T) {
	body := []byte(`{
		"model": "openai/gpt-5",
		"choices": [
			{"finish_reason": "tool_calls", "message": {"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "lookup", "arguments": "not json"}}
			]}}
		],
		"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
	}`)
	resp, err := (Translator{}).Decode(body, canon.RequestContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !hasWarning(resp.Warnings, warnToolArgumentsInvalidJSON) {
		t.Fatalf("expected %s warning, got %v", warnToolArgumentsInvalidJSON, resp.Warnings)
	}
}

func TestDecodeUnknownFinishReasonWarns(t *testing.T) {
	body := []byte(`{
		"model": "openai/gpt-5",
		"choices": [{"finish_reason": "weird", "message": {"role": "assistant", "content": "hi"}}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
	}`)
	resp, err := (Translator{}).Decode(body, canon.RequestContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !hasWarning(resp.Warnings, warnUnknownFinishReason) {
		t.Fatalf("expected %s warning, got %v", warnUnknownFinishReason, resp.Warnings)
	}
}

func TestDecodeMissingUsageWarns(t *testing.T) {
	body := []byte(`{
		"model": "openai/gpt-5",
		"choices": [{"finish_reason": "stop", "message": {"role": "assistant", "content": "hi"}}]
	}`)
	resp, err := (Translator{}).Decode(body, canon.RequestContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !hasWarning(resp.Warnings, warnUsageMissing) {
		t.Fatalf("expected %s warning, got %v", warnUsageMissing, resp.Warnings)
	}
}

func TestDecodeErrorEnvelope(t *testing.T) {
	body := []byte(`{"error": {"code": 401, "message": "invalid api key"}}`)
	if _, err := (Translator{}).Decode(body, canon.RequestContext{}); err == nil {
		t.Fatal("expected an error from an error envelope body")
	}
}

func TestDetectErrorEnvelopeOnEmbedded200Error(t *testing.T) {
	body := []byte(`{"error": {"code": 429, "message": "rate limited"}}`)
	message, ok := DetectErrorEnvelope(body)
	if !ok {
		t.Fatal("expected DetectErrorEnvelope to report an embedded error")
	}
	if message == "" {
		t.Fatal("expected a non-empty formatted error message")
	}
}

func TestDetectErrorEnvelopeAbsentOnSuccess(t *testing.T) {
	body := []byte(`{"model": "openai/gpt-5", "choices": []}`)
	if _, ok := DetectErrorEnvelope(body); ok {
		t.Fatal("expected no embedded error for a success body")
	}
}

func TestDecodeModelsList(t *testing.T) {
	body := []byte(`{
		"data": [
			{"id": "openai/gpt-5", "name": "GPT-5", "top_provider": {"context_length": 200000, "max_completion_tokens": 8000}, "supported_parameters": ["tools", "response_format"]},
			{"id": "openai/gpt-5", "name": "duplicate"}
		]
	}`)
	models, err := DecodeModelsList(body)
	if err != nil {
		t.Fatalf("decode models list: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected de-duplication to 1 model, got %d", len(models))
	}
	if !models[0].SupportsTools || !models[0].SupportsStructuredOutput {
		t.Fatalf("expected capabilities to be derived from supported_parameters: %+v", models[0])
	}
}

func hasWarning(warnings []canon.RuntimeWarning, code string) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
