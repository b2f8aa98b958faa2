// Package openrouter implements translate.Translator for OpenRouter's
// OpenAI-compatible chat completions endpoint. Unlike the OpenAI and
// Anthropic translators, this one carries per-call adapter-private state:
// OpenRouter exposes a wide surface of routing and provider-preference
// knobs that have no canonical equivalent, so a Translator here is
// constructed with the Options the caller wants threaded onto every
// request rather than being a stateless zero value.
package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/translate"
	"github.com/llmbridge/llmbridge/internal/translate/jsonorder"
	"github.com/tidwall/sjson"
)

const (
	warnBothTemperatureAndTopPSet           = "both_temperature_and_top_p_set"
	warnToolArgumentsInvalidJSON            = "tool_arguments_invalid_json"
	warnUsageMissing                        = "usage_missing"
	warnUsagePartial                        = "usage_partial"
	warnStructuredOutputParseFailed         = "structured_output_parse_failed"
	warnUnknownFinishReason                 = "unknown_finish_reason"
	warnEmptyOutput                         = "empty_output"
	warnToolResultCoerced                   = "tool_result_coerced"
	warnToolResultRawProviderContentIgnored = "tool_result_raw_provider_content_ignored"
	warnDroppedThinkingOnEncode             = "dropped_thinking_on_encode"
)

const (
	maxStopSequences  = 4
	maxMetadataPairs  = 16
	maxMetadataKeyLen = 64
	maxMetadataValLen = 512
	maxToolNameLen    = 64
	maxSessionIDLen   = 128
	maxJSONSchemaName = 64
	maxTopLogprobs    = 20
)

// Options holds the adapter-private, per-call knobs OpenRouter exposes
// beyond the canonical request shape. The zero value sends none of them.
type Options struct {
	FallbackModels      []string
	ProviderPreferences json.RawMessage
	Plugins             []json.RawMessage
	ParallelToolCalls   *bool
	FrequencyPenalty    *float64
	PresencePenalty     *float64
	LogitBias           json.RawMessage
	Logprobs            *bool
	TopLogprobs         *int
	Reasoning           json.RawMessage
	Seed                *int64
	User                *string
	SessionID           *string
	Trace               json.RawMessage
	Route               *string
	MaxTokens           *int
	Modalities          []string
	ImageConfig         json.RawMessage
	Debug               json.RawMessage
	StreamOptions       json.RawMessage
}

// Translator is the OpenRouter implementation of translate.Translator. Build
// one with New; the zero value is usable too (it sends no adapter-private
// options).
type Translator struct {
	options Options
}

// New builds a Translator that threads options onto every encoded request.
func New(options Options) Translator {
	return Translator{options: options}
}

var _ translate.Translator = Translator{}

// Encode implements translate.Translator.
func (t Translator) Encode(req canon.ProviderRequest) (translate.EncodeResult, error) {
	if err := validateProviderHint(req); err != nil {
		return translate.EncodeResult{}, err
	}
	if strings.TrimSpace(req.Model.ModelID) == "" {
		return translate.EncodeResult{}, protocolError(nil, "missing model_id")
	}
	if len(req.Stop) > maxStopSequences {
		return translate.EncodeResult{}, protocolError(&req.Model.ModelID, "stop supports at most 4 entries")
	}
	if err := validateMetadata(req); err != nil {
		return translate.EncodeResult{}, err
	}
	if err := validateSamplingControls(req); err != nil {
		return translate.EncodeResult{}, err
	}
	if err := validateOptions(t.options, req.Model.ModelID); err != nil {
		return translate.EncodeResult{}, err
	}

	var warnings []canon.RuntimeWarning
	if req.Temperature != nil && req.TopP != nil {
		warnings = append(warnings, canon.RuntimeWarning{
			Code:    warnBothTemperatureAndTopPSet,
			Message: "OpenRouter recommends setting temperature or top_p, but not both",
		})
	}

	tools, err := mapTools(req)
	if err != nil {
		return translate.EncodeResult{}, err
	}
	toolChoice, err := mapToolChoice(req, len(tools) > 0)
	if err != nil {
		return translate.EncodeResult{}, err
	}
	messages, err := mapMessages(req, len(tools) > 0, &warnings)
	if err != nil {
		return translate.EncodeResult{}, err
	}
	if len(messages) == 0 {
		return translate.EncodeResult{}, protocolError(&req.Model.ModelID, "empty messages")
	}
	responseFormat, err := mapResponseFormat(req)
	if err != nil {
		return translate.EncodeResult{}, err
	}

	payload, err := t.buildBody(req, messages, tools, toolChoice, responseFormat)
	if err != nil {
		return translate.EncodeResult{}, &bridgeerrors.SerializationError{
			Location: bridgeerrors.LocationEncode,
			Provider: canon.ProviderOpenRouter,
			Message:  err.Error(),
		}
	}

	return translate.EncodeResult{Payload: payload, Warnings: warnings}, nil
}

func (t Translator) buildBody(req canon.ProviderRequest, messages, tools []json.RawMessage, toolChoice, responseFormat json.RawMessage) ([]byte, error) {
	body := []byte(`{}`)
	opts := t.options

	var err error
	if len(opts.FallbackModels) > 0 {
		models := append([]string{req.Model.ModelID}, opts.FallbackModels...)
		if body, err = sjson.SetBytes(body, "models", models); err != nil {
			return nil, err
		}
	} else {
		if body, err = sjson.SetBytes(body, "model", req.Model.ModelID); err != nil {
			return nil, err
		}
	}

	if body, err = sjson.SetRawBytes(body, "messages", joinRawArray(messages)); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "stream", false); err != nil {
		return nil, err
	}

	if len(tools) > 0 {
		if body, err = sjson.SetRawBytes(body, "tools", joinRawArray(tools)); err != nil {
			return nil, err
		}
	}
	if toolChoice != nil {
		if body, err = sjson.SetRawBytes(body, "tool_choice", toolChoice); err != nil {
			return nil, err
		}
	}
	if responseFormat != nil {
		if body, err = sjson.SetRawBytes(body, "response_format", responseFormat); err != nil {
			return nil, err
		}
	}
	if req.Temperature != nil {
		if body, err = sjson.SetBytes(body, "temperature", *req.Temperature); err != nil {
			return nil, err
		}
	}
	if req.TopP != nil {
		if body, err = sjson.SetBytes(body, "top_p", *req.TopP); err != nil {
			return nil, err
		}
	}
	if opts.FrequencyPenalty != nil {
		if body, err = sjson.SetBytes(body, "frequency_penalty", *opts.FrequencyPenalty); err != nil {
			return nil, err
		}
	}
	if opts.PresencePenalty != nil {
		if body, err = sjson.SetBytes(body, "presence_penalty", *opts.PresencePenalty); err != nil {
			return nil, err
		}
	}
	if len(opts.LogitBias) > 0 {
		if body, err = sjson.SetRawBytes(body, "logit_bias", opts.LogitBias); err != nil {
			return nil, err
		}
	}
	if opts.Logprobs != nil {
		if body, err = sjson.SetBytes(body, "logprobs", *opts.Logprobs); err != nil {
			return nil, err
		}
	}
	if opts.TopLogprobs != nil {
		if body, err = sjson.SetBytes(body, "top_logprobs", *opts.TopLogprobs); err != nil {
			return nil, err
		}
	}
	if len(opts.Reasoning) > 0 {
		if body, err = sjson.SetRawBytes(body, "reasoning", opts.Reasoning); err != nil {
			return nil, err
		}
	}
	if req.MaxOutputTokens != nil {
		if body, err = sjson.SetBytes(body, "max_completion_tokens", *req.MaxOutputTokens); err != nil {
			return nil, err
		}
	}
	if opts.MaxTokens != nil {
		if body, err = sjson.SetBytes(body, "max_tokens", *opts.MaxTokens); err != nil {
			return nil, err
		}
	}
	if opts.Seed != nil {
		if body, err = sjson.SetBytes(body, "seed", *opts.Seed); err != nil {
			return nil, err
		}
	}
	if len(req.Stop) > 0 {
		if body, err = sjson.SetBytes(body, "stop", req.Stop); err != nil {
			return nil, err
		}
	}
	if len(req.Metadata) > 0 {
		if body, err = sjson.SetBytes(body, "metadata", req.Metadata); err != nil {
			return nil, err
		}
	}
	if opts.ParallelToolCalls != nil {
		if body, err = sjson.SetBytes(body, "parallel_tool_calls", *opts.ParallelToolCalls); err != nil {
			return nil, err
		}
	}
	if len(opts.ProviderPreferences) > 0 {
		if body, err = sjson.SetRawBytes(body, "provider", opts.ProviderPreferences); err != nil {
			return nil, err
		}
	}
	if opts.User != nil {
		if body, err = sjson.SetBytes(body, "user", *opts.User); err != nil {
			return nil, err
		}
	}
	if opts.SessionID != nil {
		if body, err = sjson.SetBytes(body, "session_id", *opts.SessionID); err != nil {
			return nil, err
		}
	}
	if len(opts.Trace) > 0 {
		if body, err = sjson.SetRawBytes(body, "trace", opts.Trace); err != nil {
			return nil, err
		}
	}
	if opts.Route != nil {
		if body, err = sjson.SetBytes(body, "route", *opts.Route); err != nil {
			return nil, err
		}
	}
	if len(opts.Modalities) > 0 {
		if body, err = sjson.SetBytes(body, "modalities", opts.Modalities); err != nil {
			return nil, err
		}
	}
	if len(opts.ImageConfig) > 0 {
		if body, err = sjson.SetRawBytes(body, "image_config", opts.ImageConfig); err != nil {
			return nil, err
		}
	}
	if len(opts.Debug) > 0 {
		if body, err = sjson.SetRawBytes(body, "debug", opts.Debug); err != nil {
			return nil, err
		}
	}
	if len(opts.StreamOptions) > 0 {
		if body, err = sjson.SetRawBytes(body, "stream_options", opts.StreamOptions); err != nil {
			return nil, err
		}
	}
	if len(opts.Plugins) > 0 {
		if body, err = sjson.SetRawBytes(body, "plugins", joinRawArray(opts.Plugins)); err != nil {
			return nil, err
		}
	}

	return body, nil
}

func joinRawArray(items []json.RawMessage) json.RawMessage {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(item)
	}
	b.WriteByte(']')
	return json.RawMessage(b.String())
}

func validateProviderHint(req canon.ProviderRequest) error {
	if req.Model.ProviderHint != nil && !req.Model.ProviderHint.Equal(canon.ProviderOpenRouter) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("provider_hint must be openrouter, got %s", req.Model.ProviderHint))
	}
	return nil
}

func validateMetadata(req canon.ProviderRequest) error {
	if len(req.Metadata) > maxMetadataPairs {
		return protocolError(&req.Model.ModelID, "metadata supports at most 16 entries")
	}
	for key, value := range req.Metadata {
		if len([]rune(key)) > maxMetadataKeyLen {
			return protocolError(&req.Model.ModelID, fmt.Sprintf("metadata key exceeds 64 characters: %s", key))
		}
		if len([]rune(value)) > maxMetadataValLen {
			return protocolError(&req.Model.ModelID, fmt.Sprintf("metadata value exceeds 512 characters for key: %s", key))
		}
	}
	return nil
}

func validateSamplingControls(req canon.ProviderRequest) error {
	if req.Temperature != nil && (*req.Temperature < 0.0 || *req.Temperature > 2.0) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("temperature must be in [0.0, 2.0], got %v", *req.Temperature))
	}
	if req.TopP != nil && (*req.TopP < 0.0 || *req.TopP > 1.0) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("top_p must be in [0.0, 1.0], got %v", *req.TopP))
	}
	if req.MaxOutputTokens != nil && *req.MaxOutputTokens == 0 {
		return protocolError(&req.Model.ModelID, "max_output_tokens must be at least 1")
	}
	return nil
}

func validateOptions(opts Options, modelID string) error {
	for _, fallback := range opts.FallbackModels {
		if strings.TrimSpace(fallback) == "" {
			return protocolError(&modelID, "fallback_models must not include empty model ids")
		}
	}
	if len(opts.ProviderPreferences) > 0 && !isJSONObject(opts.ProviderPreferences) {
		return protocolError(&modelID, "provider preferences must be a JSON object")
	}
	for i, plugin := range opts.Plugins {
		if !isJSONObject(plugin) {
			return protocolError(&modelID, fmt.Sprintf("plugin at index %d must be a JSON object", i))
		}
	}
	if opts.FrequencyPenalty != nil && (*opts.FrequencyPenalty < -2.0 || *opts.FrequencyPenalty > 2.0) {
		return protocolError(&modelID, fmt.Sprintf("frequency_penalty must be in [-2.0, 2.0], got %v", *opts.FrequencyPenalty))
	}
	if opts.PresencePenalty != nil && (*opts.PresencePenalty < -2.0 || *opts.PresencePenalty > 2.0) {
		return protocolError(&modelID, fmt.Sprintf("presence_penalty must be in [-2.0, 2.0], got %v", *opts.PresencePenalty))
	}
	if len(opts.LogitBias) > 0 {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(opts.LogitBias, &entries); err != nil {
			return protocolError(&modelID, "logit_bias must be a JSON object")
		}
		for token, bias := range entries {
			var n float64
			if json.Unmarshal(bias, &n) != nil {
				return protocolError(&modelID, fmt.Sprintf("logit_bias value for token '%s' must be numeric", token))
			}
		}
	}
	if opts.TopLogprobs != nil && (*opts.TopLogprobs < 0 || *opts.TopLogprobs > maxTopLogprobs) {
		return protocolError(&modelID, fmt.Sprintf("top_logprobs must be in [0, 20], got %d", *opts.TopLogprobs))
	}
	if len(opts.Reasoning) > 0 && !isJSONObject(opts.Reasoning) {
		return protocolError(&modelID, "reasoning must be a JSON object")
	}
	if opts.User != nil && strings.TrimSpace(*opts.User) == "" {
		return protocolError(&modelID, "user must be non-empty when provided")
	}
	if opts.SessionID != nil {
		if strings.TrimSpace(*opts.SessionID) == "" {
			return protocolError(&modelID, "session_id must be non-empty when provided")
		}
		if len([]rune(*opts.SessionID)) > maxSessionIDLen {
			return protocolError(&modelID, "session_id must be 128 characters or fewer")
		}
	}
	if len(opts.Trace) > 0 && !isJSONObject(opts.Trace) {
		return protocolError(&modelID, "trace must be a JSON object")
	}
	if opts.Route != nil && *opts.Route != "fallback" && *opts.Route != "sort" {
		return protocolError(&modelID, "route must be 'fallback' or 'sort' when provided")
	}
	if opts.MaxTokens != nil && *opts.MaxTokens == 0 {
		return protocolError(&modelID, "max_tokens must be at least 1")
	}
	if opts.Modalities != nil {
		if len(opts.Modalities) == 0 {
			return protocolError(&modelID, "modalities must be non-empty when provided")
		}
		for _, modality := range opts.Modalities {
			if modality != "text" {
				return protocolError(&modelID, fmt.Sprintf("modalities only supports 'text' in non-streaming canonical mode; got '%s'", modality))
			}
		}
	}
	if len(opts.ImageConfig) > 0 {
		return protocolError(&modelID, "image_config is unsupported in non-streaming canonical mode")
	}
	if len(opts.Debug) > 0 {
		return protocolError(&modelID, "debug is unsupported in non-streaming canonical mode")
	}
	if len(opts.StreamOptions) > 0 {
		return protocolError(&modelID, "stream_options is unsupported in non-streaming canonical mode")
	}
	return nil
}

func mapTools(req canon.ProviderRequest) ([]json.RawMessage, error) {
	tools := make([]json.RawMessage, 0, len(req.Tools))
	for _, tool := range req.Tools {
		wire, err := mapToolDefinition(tool, req.Model.ModelID)
		if err != nil {
			return nil, err
		}
		tools = append(tools, wire)
	}
	return tools, nil
}

func mapToolDefinition(tool canon.ToolDefinition, modelID string) (json.RawMessage, error) {
	if !isValidToolName(tool.Name) {
		return nil, protocolError(&modelID, fmt.Sprintf("tool '%s' name must match ^[A-Za-z0-9_-]{1,64}$", tool.Name))
	}
	if !isJSONObject(tool.ParametersSchema) {
		return nil, protocolError(&modelID, fmt.Sprintf("tool '%s' parameters_schema must be a JSON object", tool.Name))
	}
	function := map[string]any{
		"name":       tool.Name,
		"parameters": json.RawMessage(tool.ParametersSchema),
	}
	if tool.Description != "" {
		function["description"] = tool.Description
	}
	return json.Marshal(map[string]any{
		"type":     "function",
		"function": function,
	})
}

func mapToolChoice(req canon.ProviderRequest, hasTools bool) (json.RawMessage, error) {
	if !hasTools {
		switch req.ToolChoice.(type) {
		case canon.ToolChoiceRequired:
			return nil, protocolError(&req.Model.ModelID, "tool_choice required requires at least one tool definition")
		case canon.ToolChoiceSpecific:
			return nil, protocolError(&req.Model.ModelID, "tool_choice specific requires at least one tool definition")
		default:
			return nil, nil
		}
	}

	switch v := req.ToolChoice.(type) {
	case nil, canon.ToolChoiceAuto:
		return json.Marshal("auto")
	case canon.ToolChoiceNone:
		return json.Marshal("none")
	case canon.ToolChoiceRequired:
		return json.Marshal("required")
	case canon.ToolChoiceSpecific:
		if strings.TrimSpace(v.Name) == "" {
			return nil, protocolError(&req.Model.ModelID, "tool_choice specific requires non-empty name")
		}
		found := false
		for _, tool := range req.Tools {
			if tool.Name == v.Name {
				found = true
				break
			}
		}
		if !found {
			return nil, protocolError(&req.Model.ModelID, fmt.Sprintf("tool_choice specific references unknown tool: %s", v.Name))
		}
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]any{"name": v.Name},
		})
	default:
		return json.Marshal("auto")
	}
}

func mapResponseFormat(req canon.ProviderRequest) (json.RawMessage, error) {
	switch v := req.ResponseFormat.(type) {
	case nil, canon.ResponseFormatText:
		return nil, nil
	case canon.ResponseFormatJSONObject:
		return json.Marshal(map[string]any{"type": "json_object"})
	case canon.ResponseFormatJSONSchema:
		if strings.TrimSpace(v.Name) == "" {
			return nil, protocolError(&req.Model.ModelID, "json_schema response format requires non-empty name")
		}
		if len([]rune(v.Name)) > maxJSONSchemaName {
			return nil, protocolError(&req.Model.ModelID, "json_schema name exceeds 64 characters")
		}
		if !isJSONObject(v.Schema) {
			return nil, protocolError(&req.Model.ModelID, "json_schema schema must be a JSON object")
		}
		return json.Marshal(map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   v.Name,
				"schema": json.RawMessage(v.Schema),
				"strict": true,
			},
		})
	default:
		return nil, nil
	}
}

func mapMessages(req canon.ProviderRequest, hasTools bool, warnings *[]canon.RuntimeWarning) ([]json.RawMessage, error) {
	messages := make([]json.RawMessage, 0, len(req.Messages))
	sawToolRole := false

	for _, message := range req.Messages {
		wire, err := mapMessage(message, req.Model.ModelID, warnings)
		if err != nil {
			return nil, err
		}
		messages = append(messages, wire)
		if message.Role == canon.RoleTool {
			sawToolRole = true
		}
	}

	if sawToolRole && !hasTools {
		return nil, protocolError(&req.Model.ModelID, "tool messages require at least one tool definition")
	}

	return messages, nil
}

func mapMessage(message canon.Message, modelID string, warnings *[]canon.RuntimeWarning) (json.RawMessage, error) {
	switch message.Role {
	case canon.RoleSystem:
		return mapStringMessage("system", message.Content, modelID)
	case canon.RoleUser:
		return mapStringMessage("user", message.Content, modelID)
	case canon.RoleAssistant:
		return mapAssistantMessage(message.Content, modelID, warnings)
	case canon.RoleTool:
		return mapToolMessage(message.Content, modelID, warnings)
	default:
		return nil, protocolError(&modelID, fmt.Sprintf("unknown message role: %s", message.Role))
	}
}

func mapStringMessage(role string, content []canon.ContentPart, modelID string) (json.RawMessage, error) {
	text, err := joinTextParts(content, modelID, role, true)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"role": role, "content": text})
}

func mapAssistantMessage(content []canon.ContentPart, modelID string, warnings *[]canon.RuntimeWarning) (json.RawMessage, error) {
	var textParts []string
	var toolCalls []map[string]any

	for _, part := range content {
		switch v := part.(type) {
		case canon.TextPart:
			textParts = append(textParts, v.Text)
		case canon.ToolCallPart:
			if strings.TrimSpace(v.ID) == "" {
				return nil, protocolError(&modelID, "assistant tool_call id must be non-empty")
			}
			if strings.TrimSpace(v.Name) == "" {
				return nil, protocolError(&modelID, "assistant tool_call name must be non-empty")
			}
			if !isValidToolName(v.Name) {
				return nil, protocolError(&modelID, fmt.Sprintf("assistant tool_call '%s' name must match ^[A-Za-z0-9_-]{1,64}$", v.Name))
			}
			arguments, err := jsonorder.StringifyArguments(v.ArgumentsJSON)
			if err != nil {
				return nil, protocolError(&modelID, fmt.Sprintf("assistant tool_call '%s' arguments: %s", v.Name, err))
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   v.ID,
				"type": "function",
				"function": map[string]any{
					"name":      v.Name,
					"arguments": arguments,
				},
			})
		case canon.ToolResultPart:
			return nil, protocolError(&modelID, "tool_result content is only valid for tool role messages")
		case canon.ThinkingPart:
			*warnings = append(*warnings, canon.RuntimeWarning{
				Code:    warnDroppedThinkingOnEncode,
				Message: "dropped thinking content; OpenRouter does not accept client-supplied reasoning on encode",
			})
		}
	}

	if len(textParts) == 0 && len(toolCalls) == 0 {
		return nil, protocolError(&modelID, "assistant messages must contain text or tool_calls")
	}

	payload := map[string]any{"role": "assistant"}
	if len(textParts) == 0 {
		payload["content"] = nil
	} else {
		payload["content"] = strings.Join(textParts, "\n")
	}
	if len(toolCalls) > 0 {
		payload["tool_calls"] = toolCalls
	}
	return json.Marshal(payload)
}

func mapToolMessage(content []canon.ContentPart, modelID string, warnings *[]canon.RuntimeWarning) (json.RawMessage, error) {
	if len(content) != 1 {
		return nil, protocolError(&modelID, "tool role messages must contain exactly one tool_result part")
	}
	toolResult, ok := content[0].(canon.ToolResultPart)
	if !ok {
		return nil, protocolError(&modelID, "tool role messages must contain tool_result content")
	}
	if strings.TrimSpace(toolResult.ToolCallID) == "" {
		return nil, protocolError(&modelID, "tool_result tool_call_id must be non-empty")
	}

	output, err := coerceToolResultOutput(toolResult, modelID, warnings)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"role":         "tool",
		"tool_call_id": toolResult.ToolCallID,
		"content":      output,
	})
}

// coerceToolResultOutput flattens a ToolResultPart's content into the plain
// string OpenRouter's tool message expects. A single text part passes
// through unchanged; more than one is joined into a newline-delimited
// string and flagged, since the join itself is a lossy coercion a caller
// may want to know about.
func coerceToolResultOutput(toolResult canon.ToolResultPart, modelID string, warnings *[]canon.RuntimeWarning) (string, error) {
	text, err := joinTextParts(toolResult.Content, modelID, "tool_result", false)
	if err != nil {
		return "", err
	}
	if len(toolResult.Content) > 1 {
		*warnings = append(*warnings, canon.RuntimeWarning{
			Code:    warnToolResultCoerced,
			Message: "tool_result content coerced to newline-delimited string for OpenRouter tool message",
		})
	}
	return text, nil
}

func joinTextParts(content []canon.ContentPart, modelID, context string, allowEmpty bool) (string, error) {
	parts := make([]string, 0, len(content))
	for _, part := range content {
		text, ok := part.(canon.TextPart)
		if !ok {
			return "", protocolError(&modelID, fmt.Sprintf("%s content must contain only text parts", context))
		}
		parts = append(parts, text.Text)
	}
	if !allowEmpty && len(parts) == 0 {
		return "", protocolError(&modelID, fmt.Sprintf("%s content must contain at least one text part", context))
	}
	return strings.Join(parts, "\n"), nil
}

func isValidToolName(name string) bool {
	runes := []rune(name)
	if len(runes) == 0 || len(runes) > maxToolNameLen {
		return false
	}
	for _, ch := range runes {
		if !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_' || ch == '-') {
			return false
		}
	}
	return true
}

func isJSONObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	_, ok := v.(map[string]any)
	return ok
}

// --- Decode ---

type wireRoot struct {
	Model   string          `json:"model"`
	Choices []wireChoice    `json:"choices"`
	Usage   *wireUsage      `json:"usage"`
	Error   *wireErrorValue `json:"error"`
}

type wireErrorValue struct {
	Code    json.Number `json:"code"`
	Message string      `json:"message"`
}

type wireChoice struct {
	Error        json.RawMessage `json:"error"`
	FinishReason *string         `json:"finish_reason"`
	Message      *wireMessageOut `json:"message"`
}

type wireMessageOut struct {
	Role             string                `json:"role"`
	Content          json.RawMessage       `json:"content"`
	Refusal          json.RawMessage       `json:"refusal"`
	ToolCalls        []wireToolCall        `json:"tool_calls"`
	Reasoning        *string               `json:"reasoning"`
	ReasoningDetails []wireReasoningDetail `json:"reasoning_details"`
}

type wireReasoningDetail struct {
	Text string `json:"text"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireUsage struct {
	PromptTokens        *uint64 `json:"prompt_tokens"`
	CompletionTokens    *uint64 `json:"completion_tokens"`
	TotalTokens         *uint64 `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens *uint64 `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails *struct {
		ReasoningTokens *uint64 `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// Decode implements translate.Translator.
func (t Translator) Decode(body []byte, reqCtx canon.RequestContext) (canon.ProviderResponse, error) {
	var root wireRoot
	if err := json.Unmarshal(body, &root); err != nil {
		return canon.ProviderResponse{}, protocolError(nil, "openrouter response payload must be a JSON object")
	}

	if root.Error != nil {
		return canon.ProviderResponse{}, protocolError(nil, formatErrorMessage(root.Error))
	}

	model := root.Model
	if model == "" {
		model = "<unknown-model>"
	}

	if len(root.Choices) == 0 {
		return canon.ProviderResponse{}, protocolError(&model, "openrouter response missing choices array")
	}

	choice := root.Choices[0]
	if len(choice.Error) > 0 && string(choice.Error) != "null" {
		return canon.ProviderResponse{}, protocolError(&model, fmt.Sprintf("openrouter response choice contained error: %s", string(choice.Error)))
	}
	if choice.FinishReason != nil && *choice.FinishReason == "error" {
		return canon.ProviderResponse{}, protocolError(&model, "openrouter response finish_reason was error")
	}
	if choice.Message == nil {
		return canon.ProviderResponse{}, protocolError(&model, "openrouter response missing choice message")
	}
	if choice.Message.Role != "" && choice.Message.Role != "assistant" {
		return canon.ProviderResponse{}, protocolError(&model, fmt.Sprintf("openrouter response message role must be assistant, got %s", choice.Message.Role))
	}

	var warnings []canon.RuntimeWarning
	var content []canon.ContentPart
	var textBlocks []string

	msgContent, msgText, err := decodeMessageContent(choice.Message.Content)
	if err != nil {
		return canon.ProviderResponse{}, protocolError(&model, err.Error())
	}
	content = append(content, msgContent...)
	textBlocks = append(textBlocks, msgText...)

	refusalContent, refusalText, err := decodeRefusal(choice.Message.Refusal)
	if err != nil {
		return canon.ProviderResponse{}, protocolError(&model, err.Error())
	}
	content = append(content, refusalContent...)
	textBlocks = append(textBlocks, refusalText...)

	toolCallContent, err := decodeToolCalls(choice.Message.ToolCalls, &warnings, model)
	if err != nil {
		return canon.ProviderResponse{}, err
	}
	content = append(content, toolCallContent...)

	content = append(content, decodeReasoning(choice.Message)...)

	if len(content) == 0 {
		warnings = append(warnings, canon.RuntimeWarning{
			Code:    warnEmptyOutput,
			Message: "openrouter response contained no decodable output content",
		})
	}

	finishReason := mapFinishReason(choice.FinishReason, &warnings)
	usage := decodeUsage(root.Usage, &warnings)
	structuredOutput := decodeStructuredOutput(reqCtx.ResponseFormat, textBlocks, &warnings)

	return canon.ProviderResponse{
		Output: canon.AssistantOutput{
			Content:          content,
			StructuredOutput: structuredOutput,
		},
		Usage:        usage,
		Provider:     canon.ProviderOpenRouter,
		Model:        model,
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

func decodeMessageContent(raw json.RawMessage) ([]canon.ContentPart, []string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}

	var asString *string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == nil || *asString == "" {
			return nil, nil, nil
		}
		return []canon.ContentPart{canon.TextPart{Text: *asString}}, []string{*asString}, nil
	}

	var items []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		content := make([]canon.ContentPart, 0, len(items))
		text := make([]string, 0, len(items))
		for _, item := range items {
			if item.Type != "text" {
				return nil, nil, fmt.Errorf("assistant content item type '%s' is unsupported in canonical text mode", item.Type)
			}
			content = append(content, canon.TextPart{Text: item.Text})
			text = append(text, item.Text)
		}
		return content, text, nil
	}

	return nil, nil, fmt.Errorf("assistant content must be string, array, or null")
}

func decodeRefusal(raw json.RawMessage) ([]canon.ContentPart, []string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}
	var refusal string
	if err := json.Unmarshal(raw, &refusal); err != nil {
		return nil, nil, fmt.Errorf("assistant refusal must be a string or null")
	}
	if refusal == "" {
		return nil, nil, nil
	}
	return []canon.ContentPart{canon.TextPart{Text: refusal}}, []string{refusal}, nil
}

func decodeToolCalls(calls []wireToolCall, warnings *[]canon.RuntimeWarning, model string) ([]canon.ContentPart, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	content := make([]canon.ContentPart, 0, len(calls))
	for _, call := range calls {
		if strings.TrimSpace(call.ID) == "" {
			return nil, protocolError(&model, "tool_call id must be non-empty")
		}
		if call.Type != "function" {
			return nil, protocolError(&model, fmt.Sprintf("tool_call type must be function, got %s", call.Type))
		}
		if call.Function.Name == "" {
			return nil, protocolError(&model, "tool_call function missing name")
		}

		argumentsJSON, ok := jsonorder.ParseArguments(call.Function.Arguments)
		if !ok {
			*warnings = append(*warnings, canon.RuntimeWarning{
				Code:    warnToolArgumentsInvalidJSON,
				Message: fmt.Sprintf("openrouter tool_call arguments were not valid JSON for call_id=%s", call.ID),
			})
			fallback, err := jsonorder.ArgumentsAsJSONString(call.Function.Arguments)
			if err != nil {
				return nil, protocolError(&model, "tool_call arguments could not be preserved")
			}
			argumentsJSON = fallback
		}

		content = append(content, canon.ToolCallPart{
			ID:            call.ID,
			Name:          call.Function.Name,
			ArgumentsJSON: argumentsJSON,
		})
	}
	return content, nil
}

func decodeReasoning(msg *wireMessageOut) []canon.ContentPart {
	text := decodeReasoningText(msg)
	if text == "" {
		return nil
	}
	return []canon.ContentPart{canon.ThinkingPart{Text: text, Provider: providerPtr(canon.ProviderOpenRouter)}}
}

func decodeReasoningText(msg *wireMessageOut) string {
	if msg.Reasoning != nil && strings.TrimSpace(*msg.Reasoning) != "" {
		return *msg.Reasoning
	}
	if len(msg.ReasoningDetails) == 0 {
		return ""
	}
	parts := make([]string, 0, len(msg.ReasoningDetails))
	for _, detail := range msg.ReasoningDetails {
		if detail.Text != "" {
			parts = append(parts, detail.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func providerPtr(p canon.ProviderID) *canon.ProviderID { return &p }

func decodeUsage(usage *wireUsage, warnings *[]canon.RuntimeWarning) canon.Usage {
	if usage == nil {
		*warnings = append(*warnings, canon.RuntimeWarning{
			Code:    warnUsageMissing,
			Message: "openrouter response usage was missing",
		})
		return canon.Usage{}
	}

	result := canon.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		TotalTokens:  usage.TotalTokens,
	}
	if usage.PromptTokensDetails != nil {
		result.CachedInputTokens = usage.PromptTokensDetails.CachedTokens
	}
	if usage.CompletionTokensDetails != nil {
		result.ReasoningTokens = usage.CompletionTokensDetails.ReasoningTokens
	}

	if result.InputTokens == nil || result.OutputTokens == nil || result.TotalTokens == nil {
		*warnings = append(*warnings, canon.RuntimeWarning{
			Code:    warnUsagePartial,
			Message: "openrouter response usage was partial",
		})
	}

	return result
}

func decodeStructuredOutput(format canon.ResponseFormat, textBlocks []string, warnings *[]canon.RuntimeWarning) json.RawMessage {
	if _, ok := format.(canon.ResponseFormatText); ok || format == nil {
		return nil
	}
	if len(textBlocks) == 0 {
		return nil
	}

	joined := strings.Join(textBlocks, "\n")
	var value any
	if err := json.Unmarshal([]byte(joined), &value); err != nil {
		*warnings = append(*warnings, canon.RuntimeWarning{
			Code:    warnStructuredOutputParseFailed,
			Message: fmt.Sprintf("failed to parse structured output JSON: %s", err),
		})
		return nil
	}
	normalized, err := json.Marshal(value)
	if err != nil {
		*warnings = append(*warnings, canon.RuntimeWarning{
			Code:    warnStructuredOutputParseFailed,
			Message: fmt.Sprintf("failed to normalize structured output JSON: %s", err),
		})
		return nil
	}
	return json.RawMessage(normalized)
}

func mapFinishReason(raw *string, warnings *[]canon.RuntimeWarning) canon.FinishReason {
	if raw == nil {
		return canon.FinishOther
	}
	switch *raw {
	case "stop":
		return canon.FinishStop
	case "length":
		return canon.FinishLength
	case "tool_calls":
		return canon.FinishToolCalls
	case "content_filter":
		return canon.FinishContentFilter
	case "error":
		return canon.FinishError
	default:
		*warnings = append(*warnings, canon.RuntimeWarning{
			Code:    warnUnknownFinishReason,
			Message: fmt.Sprintf("openrouter finish_reason '%s' mapped to other", *raw),
		})
		return canon.FinishOther
	}
}

func formatErrorMessage(e *wireErrorValue) string {
	if e.Code != "" {
		return fmt.Sprintf("openrouter error: %s [code=%s]", e.Message, e.Code.String())
	}
	return fmt.Sprintf("openrouter error: %s", e.Message)
}

// DetectErrorEnvelope reports whether an HTTP 200 OpenRouter body carries an
// embedded error object (a quirk of OpenRouter's gateway: some upstream
// failures surface this way instead of as a non-2xx status). Adapters call
// this before treating a 200 response as success.
func DetectErrorEnvelope(body []byte) (message string, ok bool) {
	var root struct {
		Error *wireErrorValue `json:"error"`
	}
	if err := json.Unmarshal(body, &root); err != nil || root.Error == nil {
		return "", false
	}
	return formatErrorMessage(root.Error), true
}

// ModelInfo fields mirror canon.ModelInfo; DecodeModelsList ports OpenRouter's
// /models catalog shape into canonical model entries for discovery.
func DecodeModelsList(body []byte) ([]canon.ModelInfo, error) {
	var root struct {
		Data []wireModelEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, protocolError(nil, "openrouter models payload must be a JSON object")
	}

	models := make([]canon.ModelInfo, 0, len(root.Data))
	seen := make(map[string]struct{}, len(root.Data))

	for index, entry := range root.Data {
		modelID := strings.TrimSpace(entry.ID)
		if modelID == "" {
			return nil, protocolError(nil, fmt.Sprintf("openrouter models payload entry missing id at index %d", index))
		}
		if _, dup := seen[modelID]; dup {
			continue
		}
		seen[modelID] = struct{}{}

		var contextWindow, maxOutputTokens *int
		if entry.TopProvider != nil {
			contextWindow = entry.TopProvider.ContextLength
			maxOutputTokens = entry.TopProvider.MaxCompletionTokens
		}
		if contextWindow == nil {
			contextWindow = entry.ContextLength
		}

		supportsTools, supportsStructuredOutput := decodeModelCapabilities(entry.SupportedParameters)

		var displayName *string
		if entry.Name != "" {
			name := entry.Name
			displayName = &name
		}

		models = append(models, canon.ModelInfo{
			Provider:                 canon.ProviderOpenRouter,
			ModelID:                  modelID,
			DisplayName:              displayName,
			ContextWindow:            contextWindow,
			MaxOutputTokens:          maxOutputTokens,
			SupportsTools:            supportsTools,
			SupportsStructuredOutput: supportsStructuredOutput,
		})
	}

	return models, nil
}

type wireModelEntry struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	ContextLength        *int     `json:"context_length"`
	SupportedParameters  []string `json:"supported_parameters"`
	TopProvider          *struct {
		ContextLength       *int `json:"context_length"`
		MaxCompletionTokens *int `json:"max_completion_tokens"`
	} `json:"top_provider"`
}

func decodeModelCapabilities(supportedParameters []string) (supportsTools, supportsStructuredOutput bool) {
	if supportedParameters == nil {
		return true, true
	}
	for _, param := range supportedParameters {
		switch param {
		case "tools":
			supportsTools = true
		case "response_format", "structured_outputs":
			supportsStructuredOutput = true
		}
	}
	return supportsTools, supportsStructuredOutput
}

func protocolError(model *string, message string) error {
	err := &bridgeerrors.ProviderProtocolError{
		Provider: canon.ProviderOpenRouter,
		Message:  message,
	}
	if model != nil {
		err.Model = *model
	}
	return err
}
