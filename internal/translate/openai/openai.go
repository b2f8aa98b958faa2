// Package openai implements the pure translator contract for the OpenAI
// Responses API (POST /v1/responses).
package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/translate"
	"github.com/llmbridge/llmbridge/internal/translate/jsonorder"
)

const (
	warnDroppedThinkingOnEncode      = "dropped_thinking_on_encode"
	warnBothTemperatureAndTopPSet    = "both_temperature_and_top_p_set"
	warnToolSchemaStrictDisabled     = "tool_schema_strict_disabled"
	warnToolArgumentsInvalidJSON     = "tool_arguments_invalid_json"
	warnUsageMissing                 = "usage_missing"
	warnStructuredOutputParseFailed  = "structured_output_parse_failed"
	warnIncompleteUnknownReason      = "openai_incomplete_unknown_reason"
	warnIncompleteMissingReason      = "openai_incomplete_missing_reason"
	warnEmptyOutput                  = "empty_output"
)

const maxMetadataPairs = 16
const maxMetadataKeyLen = 64
const maxMetadataValueLen = 512

// Translator implements translate.Translator for OpenAI.
type Translator struct{}

var _ translate.Translator = Translator{}

type wireInputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireInputItem struct {
	Type      string             `json:"type"`
	Role      string             `json:"role,omitempty"`
	Content   []wireInputContent `json:"content,omitempty"`
	CallID    string             `json:"call_id,omitempty"`
	Name      string             `json:"name,omitempty"`
	Arguments string             `json:"arguments,omitempty"`
	Output    string             `json:"output,omitempty"`
}

type wireTextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
	Strict *bool           `json:"strict,omitempty"`
}

type wireText struct {
	Format wireTextFormat `json:"format"`
}

type wireTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
	Strict      *bool           `json:"strict,omitempty"`
}

type wireRequest struct {
	Model           string            `json:"model"`
	Input           []wireInputItem   `json:"input"`
	Text            wireText          `json:"text"`
	Tools           []wireTool        `json:"tools,omitempty"`
	ToolChoice      json.RawMessage   `json:"tool_choice,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	TopP            *float64          `json:"top_p,omitempty"`
	MaxOutputTokens *int              `json:"max_output_tokens,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Store           bool              `json:"store"`
}

// Encode implements translate.Translator.
func (Translator) Encode(req canon.ProviderRequest) (translate.EncodeResult, error) {
	var warnings []canon.RuntimeWarning

	if req.Model.ProviderHint != nil && !req.Model.ProviderHint.Equal(canon.ProviderOpenAI) {
		return translate.EncodeResult{}, protocolError("provider_hint does not match openai")
	}
	if strings.TrimSpace(req.Model.ModelID) == "" {
		return translate.EncodeResult{}, protocolError("model id is required")
	}
	if len(req.Stop) > 0 {
		return translate.EncodeResult{}, protocolError("stop sequences are not supported by the openai responses api")
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return translate.EncodeResult{}, err
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return translate.EncodeResult{}, protocolError("temperature must be within [0, 2]")
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return translate.EncodeResult{}, protocolError("top_p must be within [0, 1]")
	}
	if req.Temperature != nil && req.TopP != nil {
		warnings = append(warnings, canon.RuntimeWarning{Code: warnBothTemperatureAndTopPSet, Message: "both temperature and top_p were set"})
	}

	input, w, err := encodeMessages(req)
	if err != nil {
		return translate.EncodeResult{}, err
	}
	if len(input) == 0 {
		return translate.EncodeResult{}, protocolError("empty input")
	}
	warnings = append(warnings, w...)

	tools, w, err := encodeTools(req.Tools)
	if err != nil {
		return translate.EncodeResult{}, err
	}
	warnings = append(warnings, w...)

	toolChoice, err := encodeToolChoice(req.ToolChoice, req.Tools)
	if err != nil {
		return translate.EncodeResult{}, err
	}

	text, err := encodeResponseFormat(req.ResponseFormat, req.Messages)
	if err != nil {
		return translate.EncodeResult{}, err
	}

	wire := wireRequest{
		Model:           req.Model.ModelID,
		Input:           input,
		Text:            wireText{Format: text},
		Tools:           tools,
		ToolChoice:      toolChoice,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxOutputTokens,
		Metadata:        req.Metadata,
		Store:           false,
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return translate.EncodeResult{}, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderOpenAI, Message: err.Error()}
	}

	return translate.EncodeResult{Payload: payload, Warnings: warnings}, nil
}

func validateMetadata(metadata map[string]string) error {
	if len(metadata) > maxMetadataPairs {
		return protocolError(fmt.Sprintf("metadata has %d pairs, limit is %d", len(metadata), maxMetadataPairs))
	}
	for k, v := range metadata {
		if len(k) > maxMetadataKeyLen {
			return protocolError(fmt.Sprintf("metadata key %q exceeds %d characters", k, maxMetadataKeyLen))
		}
		if len(v) > maxMetadataValueLen {
			return protocolError(fmt.Sprintf("metadata value for key %q exceeds %d characters", k, maxMetadataValueLen))
		}
	}
	return nil
}

func encodeMessages(req canon.ProviderRequest) ([]wireInputItem, []canon.RuntimeWarning, error) {
	var items []wireInputItem
	var warnings []canon.RuntimeWarning
	seenToolCallIDs := make(map[string]struct{})

	for _, msg := range req.Messages {
		var pending []wireInputContent
		flush := func() {
			if len(pending) == 0 {
				return
			}
			if msg.Role == canon.RoleTool {
				pending = nil
				return
			}
			items = append(items, wireInputItem{Type: "message", Role: roleString(msg.Role), Content: pending})
			pending = nil
		}

		for _, part := range msg.Content {
			switch v := part.(type) {
			case canon.TextPart:
				if msg.Role == canon.RoleTool {
					return nil, nil, protocolError("tool role messages cannot contain plain text content")
				}
				pending = append(pending, wireInputContent{Type: "input_text", Text: v.Text})
			case canon.ThinkingPart:
				warnings = append(warnings, canon.RuntimeWarning{Code: warnDroppedThinkingOnEncode, Message: "dropped thinking content part on encode"})
			case canon.ToolCallPart:
				if msg.Role != canon.RoleAssistant {
					return nil, nil, protocolError("tool_call content is only valid for assistant role messages")
				}
				flush()
				argsStr, err := jsonorder.StringifyArguments(v.ArgumentsJSON)
				if err != nil {
					return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderOpenAI, Message: err.Error()}
				}
				seenToolCallIDs[v.ID] = struct{}{}
				items = append(items, wireInputItem{Type: "function_call", CallID: v.ID, Name: v.Name, Arguments: argsStr})
			case canon.ToolResultPart:
				if msg.Role != canon.RoleTool {
					return nil, nil, protocolError("tool_result content is only valid for tool role messages")
				}
				flush()
				if _, ok := seenToolCallIDs[v.ToolCallID]; !ok {
					return nil, nil, protocolError(fmt.Sprintf("tool_result_without_matching_tool_call: %s", v.ToolCallID))
				}
				output, err := joinToolResultText(v.Content)
				if err != nil {
					return nil, nil, err
				}
				items = append(items, wireInputItem{Type: "function_call_output", CallID: v.ToolCallID, Output: output})
			default:
				return nil, nil, protocolError(fmt.Sprintf("unsupported content part type %T", part))
			}
		}
		flush()
	}

	return items, warnings, nil
}

func joinToolResultText(parts []canon.ContentPart) (string, error) {
	var sb strings.Builder
	for i, part := range parts {
		text, ok := part.(canon.TextPart)
		if !ok {
			return "", protocolError("tool result content must contain only text parts for openai")
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text.Text)
	}
	return sb.String(), nil
}

func roleString(role canon.MessageRole) string {
	switch role {
	case canon.RoleSystem:
		return "system"
	case canon.RoleUser:
		return "user"
	case canon.RoleAssistant:
		return "assistant"
	case canon.RoleTool:
		return "tool"
	default:
		return string(role)
	}
}

func encodeTools(tools []canon.ToolDefinition) ([]wireTool, []canon.RuntimeWarning, error) {
	if len(tools) == 0 {
		return nil, nil, nil
	}
	var warnings []canon.RuntimeWarning
	out := make([]wireTool, 0, len(tools))
	for _, tool := range tools {
		schema, err := canon.CanonicalizeRaw(tool.ParametersSchema)
		if err != nil {
			return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderOpenAI, Message: err.Error()}
		}
		wire := wireTool{Type: "function", Name: tool.Name, Description: tool.Description, Parameters: schema}
		if jsonorder.IsStrictCompatible(schema) {
			strict := true
			wire.Strict = &strict
		} else {
			warnings = append(warnings, canon.RuntimeWarning{Code: warnToolSchemaStrictDisabled, Message: fmt.Sprintf("tool %q schema is not strict-compatible; strict disabled", tool.Name)})
		}
		out = append(out, wire)
	}
	return out, warnings, nil
}

func encodeToolChoice(choice canon.ToolChoice, tools []canon.ToolDefinition) (json.RawMessage, error) {
	if choice == nil {
		choice = canon.ToolChoiceAuto{}
	}
	switch v := choice.(type) {
	case canon.ToolChoiceNone:
		return json.Marshal("none")
	case canon.ToolChoiceAuto:
		return json.Marshal("auto")
	case canon.ToolChoiceRequired:
		return json.Marshal("required")
	case canon.ToolChoiceSpecific:
		found := false
		for _, tool := range tools {
			if tool.Name == v.Name {
				found = true
				break
			}
		}
		if !found {
			return nil, protocolError(fmt.Sprintf("tool_choice references undeclared tool %q", v.Name))
		}
		return json.Marshal(map[string]string{"type": "function", "name": v.Name})
	default:
		return nil, protocolError(fmt.Sprintf("unknown tool choice %T", choice))
	}
}

func encodeResponseFormat(format canon.ResponseFormat, messages []canon.Message) (wireTextFormat, error) {
	if format == nil {
		format = canon.ResponseFormatText{}
	}
	switch v := format.(type) {
	case canon.ResponseFormatText:
		return wireTextFormat{Type: "text"}, nil
	case canon.ResponseFormatJSONObject:
		if !joinedMessageTextContains(messages, "JSON") {
			return wireTextFormat{}, protocolError(`json_object response format requires the literal substring "JSON" somewhere in the message text`)
		}
		return wireTextFormat{Type: "json_object"}, nil
	case canon.ResponseFormatJSONSchema:
		schema, err := canon.CanonicalizeRaw(v.Schema)
		if err != nil {
			return wireTextFormat{}, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderOpenAI, Message: err.Error()}
		}
		strict := true
		return wireTextFormat{Type: "json_schema", Name: v.Name, Schema: schema, Strict: &strict}, nil
	default:
		return wireTextFormat{}, protocolError(fmt.Sprintf("unknown response format %T", format))
	}
}

func joinedMessageTextContains(messages []canon.Message, substr string) bool {
	for _, msg := range messages {
		for _, part := range msg.Content {
			if text, ok := part.(canon.TextPart); ok && strings.Contains(text.Text, substr) {
				return true
			}
		}
	}
	return false
}

// --- decode ---

// Decode implements translate.Translator.
func (Translator) Decode(body []byte, reqCtx canon.RequestContext) (canon.ProviderResponse, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return canon.ProviderResponse{}, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationDecode, Provider: canon.ProviderOpenAI, Message: "malformed openai response body: " + err.Error()}
	}

	if errRaw, ok := root["error"]; ok && len(errRaw) > 0 && string(errRaw) != "null" {
		return canon.ProviderResponse{}, decodeErrorEnvelope(errRaw)
	}

	status := decodeString(root["status"])
	switch status {
	case "failed":
		return canon.ProviderResponse{}, protocolError("openai response status is failed")
	case "cancelled":
		return canon.ProviderResponse{}, protocolError("openai response status is cancelled")
	case "queued", "in_progress":
		return canon.ProviderResponse{}, protocolError(fmt.Sprintf("openai response status is non-terminal: %s", status))
	}

	var items []json.RawMessage
	if raw, ok := root["output"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return canon.ProviderResponse{}, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationDecode, Provider: canon.ProviderOpenAI, Message: "malformed output array: " + err.Error()}
		}
	}

	var content []canon.ContentPart
	var warnings []canon.RuntimeWarning
	for _, raw := range items {
		part, w, err := decodeOutputItem(raw)
		if err != nil {
			return canon.ProviderResponse{}, err
		}
		warnings = append(warnings, w...)
		if part != nil {
			content = append(content, part)
		}
	}

	if len(content) == 0 {
		warnings = append(warnings, canon.RuntimeWarning{Code: warnEmptyOutput, Message: "openai response contained no decodable output content"})
	}

	finishReason, w, err := mapFinishReason(status, root, content)
	if err != nil {
		return canon.ProviderResponse{}, err
	}
	warnings = append(warnings, w...)

	usage, w := decodeUsage(root["usage"])
	warnings = append(warnings, w...)

	structuredOutput, w := decodeStructuredOutput(reqCtx.ResponseFormat, content)
	warnings = append(warnings, w...)

	return canon.ProviderResponse{
		Output:       canon.AssistantOutput{Content: content, StructuredOutput: structuredOutput},
		Usage:        usage,
		Provider:     canon.ProviderOpenAI,
		Model:        decodeString(root["model"]),
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

func decodeOutputItem(raw json.RawMessage) (canon.ContentPart, []canon.RuntimeWarning, error) {
	var item map[string]json.RawMessage
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationDecode, Provider: canon.ProviderOpenAI, Message: "malformed output item: " + err.Error()}
	}
	switch decodeString(item["type"]) {
	case "message":
		return decodeMessageItem(item)
	case "function_call":
		return decodeFunctionCallItem(item)
	case "reasoning":
		return canon.ThinkingPart{Text: decodeReasoningText(item), Provider: providerPtr(canon.ProviderOpenAI)}, nil, nil
	default:
		return nil, nil, protocolError(fmt.Sprintf("unknown openai output item type %q", decodeString(item["type"])))
	}
}

func decodeReasoningText(item map[string]json.RawMessage) string {
	var summary []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(item["summary"], &summary); err != nil || len(summary) == 0 {
		return ""
	}
	parts := make([]string, 0, len(summary))
	for _, s := range summary {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n")
}

func decodeMessageItem(item map[string]json.RawMessage) (canon.ContentPart, []canon.RuntimeWarning, error) {
	var contentItems []map[string]json.RawMessage
	if err := json.Unmarshal(item["content"], &contentItems); err != nil {
		return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationDecode, Provider: canon.ProviderOpenAI, Message: "malformed message content: " + err.Error()}
	}
	var sb strings.Builder
	for i, c := range contentItems {
		switch decodeString(c["type"]) {
		case "output_text":
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(decodeString(c["text"]))
		default:
			return nil, nil, protocolError(fmt.Sprintf("unsupported openai message content part type %q", decodeString(c["type"])))
		}
	}
	return canon.TextPart{Text: sb.String()}, nil, nil
}

func decodeFunctionCallItem(item map[string]json.RawMessage) (canon.ContentPart, []canon.RuntimeWarning, error) {
	var warnings []canon.RuntimeWarning
	argsStr := decodeString(item["arguments"])
	parsed, ok := jsonorder.ParseArguments(argsStr)
	if !ok {
		warnings = append(warnings, canon.RuntimeWarning{Code: warnToolArgumentsInvalidJSON, Message: "function_call arguments were not valid JSON; stored as a string"})
		asString, err := jsonorder.ArgumentsAsJSONString(argsStr)
		if err != nil {
			return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationDecode, Provider: canon.ProviderOpenAI, Message: err.Error()}
		}
		parsed = asString
	}
	return canon.ToolCallPart{ID: decodeString(item["call_id"]), Name: decodeString(item["name"]), ArgumentsJSON: parsed}, warnings, nil
}

func mapFinishReason(status string, root map[string]json.RawMessage, content []canon.ContentPart) (canon.FinishReason, []canon.RuntimeWarning, error) {
	if status == "incomplete" {
		var details struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(root["incomplete_details"], &details)
		switch details.Reason {
		case "max_output_tokens":
			return canon.FinishLength, nil, nil
		case "content_filter":
			return canon.FinishContentFilter, nil, nil
		case "":
			return canon.FinishOther, []canon.RuntimeWarning{{Code: warnIncompleteMissingReason, Message: "openai response incomplete with no reason"}}, nil
		default:
			return canon.FinishOther, []canon.RuntimeWarning{{Code: warnIncompleteUnknownReason, Message: fmt.Sprintf("openai response incomplete for reason: %s", details.Reason)}}, nil
		}
	}

	if status != "completed" {
		return "", nil, protocolError(fmt.Sprintf("unknown openai response status: %s", status))
	}

	if len(content) > 0 {
		if _, ok := content[len(content)-1].(canon.ToolCallPart); ok {
			return canon.FinishToolCalls, nil, nil
		}
	}
	return canon.FinishStop, nil, nil
}

func decodeUsage(raw json.RawMessage) (canon.Usage, []canon.RuntimeWarning) {
	if len(raw) == 0 || string(raw) == "null" {
		return canon.Usage{}, []canon.RuntimeWarning{{Code: warnUsageMissing, Message: "openai response missing usage details"}}
	}
	var wire struct {
		InputTokens  *uint64 `json:"input_tokens"`
		OutputTokens *uint64 `json:"output_tokens"`
		TotalTokens  *uint64 `json:"total_tokens"`
		OutputDetail struct {
			ReasoningTokens *uint64 `json:"reasoning_tokens"`
		} `json:"output_tokens_details"`
		InputDetail struct {
			CachedTokens *uint64 `json:"cached_tokens"`
		} `json:"input_tokens_details"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return canon.Usage{}, []canon.RuntimeWarning{{Code: warnUsageMissing, Message: "openai response usage was malformed"}}
	}
	return canon.Usage{
		InputTokens:       wire.InputTokens,
		OutputTokens:      wire.OutputTokens,
		TotalTokens:        wire.TotalTokens,
		ReasoningTokens:   wire.OutputDetail.ReasoningTokens,
		CachedInputTokens: wire.InputDetail.CachedTokens,
	}, nil
}

func decodeStructuredOutput(format canon.ResponseFormat, content []canon.ContentPart) (json.RawMessage, []canon.RuntimeWarning) {
	if _, ok := format.(canon.ResponseFormatText); ok || format == nil {
		return nil, nil
	}
	var sb strings.Builder
	for _, part := range content {
		if text, ok := part.(canon.TextPart); ok {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(text.Text)
		}
	}
	joined := strings.TrimSpace(sb.String())
	if joined == "" {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal([]byte(sb.String()), &value); err != nil {
		return nil, []canon.RuntimeWarning{{Code: warnStructuredOutputParseFailed, Message: "failed to parse structured output JSON: " + err.Error()}}
	}
	if _, ok := format.(canon.ResponseFormatJSONObject); ok {
		if _, isObject := value.(map[string]any); !isObject {
			return nil, []canon.RuntimeWarning{{Code: warnStructuredOutputParseFailed, Message: "structured output was valid JSON but not an object"}}
		}
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, []canon.RuntimeWarning{{Code: warnStructuredOutputParseFailed, Message: err.Error()}}
	}
	return out, nil
}

type errorEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
	Param   string `json:"param"`
}

func decodeErrorEnvelope(raw json.RawMessage) error {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	message := env.Message
	if message == "" {
		message = "openai response reported an error"
	}
	return &bridgeerrors.ProviderProtocolError{Provider: canon.ProviderOpenAI, Message: message}
}

func protocolError(message string) error {
	return &bridgeerrors.ProviderProtocolError{Provider: canon.ProviderOpenAI, Message: message}
}

func providerPtr(p canon.ProviderID) *canon.ProviderID { return &p }
