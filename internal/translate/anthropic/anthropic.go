// Package anthropic implements the pure translator contract for the
// Anthropic Messages API (POST /v1/messages).
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/translate"
)

const defaultMaxTokens = 1024

const (
	warnBothTemperatureAndTopPSet       = "both_temperature_and_top_p_set"
	warnDroppedUnsupportedMetadataKeys  = "dropped_unsupported_metadata_keys"
	warnDefaultMaxTokensApplied         = "default_max_tokens_applied"
	warnUnknownContentBlockMapped       = "unknown_content_block_mapped_to_text"
	warnUnknownStopReason               = "unknown_stop_reason"
	warnUsageMissing                    = "usage_missing"
	warnUsagePartial                    = "usage_partial"
	warnStructuredOutputParseFailed     = "structured_output_parse_failed"
	warnEmptyOutput                     = "empty_output"
	warnDroppedThinkingOnEncode         = "dropped_thinking_on_encode"
	warnRedactedThinking                = "redacted_thinking_content"
)

// Translator implements translate.Translator for Anthropic.
type Translator struct{}

var _ translate.Translator = Translator{}

type wireMessage struct {
	Role    string            `json:"role"`
	Content []json.RawMessage `json:"content"`
}

type wireRequest struct {
	Model         string            `json:"model"`
	MaxTokens     int               `json:"max_tokens"`
	Messages      []wireMessage     `json:"messages"`
	System        []json.RawMessage `json:"system,omitempty"`
	Tools         []json.RawMessage `json:"tools,omitempty"`
	ToolChoice    json.RawMessage   `json:"tool_choice"`
	OutputConfig  json.RawMessage   `json:"output_config,omitempty"`
	StopSequences []string          `json:"stop_sequences,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
	TopP          *float64          `json:"top_p,omitempty"`
	Metadata      json.RawMessage   `json:"metadata,omitempty"`
}

// Encode implements translate.Translator.
func (Translator) Encode(req canon.ProviderRequest) (translate.EncodeResult, error) {
	if err := validateProviderHint(req); err != nil {
		return translate.EncodeResult{}, err
	}
	if strings.TrimSpace(req.Model.ModelID) == "" {
		return translate.EncodeResult{}, protocolError("missing model id")
	}
	if req.MaxOutputTokens != nil && *req.MaxOutputTokens == 0 {
		return translate.EncodeResult{}, protocolError("max_output_tokens must be at least 1 for anthropic")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 1) {
		return translate.EncodeResult{}, protocolError(fmt.Sprintf("temperature must be in [0, 1], got %v", *req.Temperature))
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return translate.EncodeResult{}, protocolError(fmt.Sprintf("top_p must be in [0, 1], got %v", *req.TopP))
	}
	for _, s := range req.Stop {
		if s == "" {
			return translate.EncodeResult{}, protocolError("stop sequences must not contain empty strings")
		}
	}

	var warnings []canon.RuntimeWarning
	if req.Temperature != nil && req.TopP != nil {
		warnings = append(warnings, canon.RuntimeWarning{Code: warnBothTemperatureAndTopPSet, Message: "anthropic recommends setting temperature or top_p, but not both"})
	}

	system, rest, err := splitSystemPrefix(req.Messages)
	if err != nil {
		return translate.EncodeResult{}, err
	}

	mapped, w, err := mapNonSystemMessages(req, rest)
	if err != nil {
		return translate.EncodeResult{}, err
	}
	warnings = append(warnings, w...)

	merged := mergeConsecutiveMessages(mapped)
	if err := validateToolOrdering(req, merged); err != nil {
		return translate.EncodeResult{}, err
	}
	if len(merged) == 0 {
		return translate.EncodeResult{}, protocolError("empty messages")
	}

	outputConfig, err := mapResponseFormat(req, merged)
	if err != nil {
		return translate.EncodeResult{}, err
	}

	tools, err := mapTools(req.Tools)
	if err != nil {
		return translate.EncodeResult{}, err
	}

	toolChoice, err := mapToolChoice(req)
	if err != nil {
		return translate.EncodeResult{}, err
	}

	metadata, mw := mapMetadata(req.Metadata)
	warnings = append(warnings, mw...)

	wireMessages := make([]wireMessage, 0, len(merged))
	for _, m := range merged {
		wireMessages = append(wireMessages, wireMessage{Role: m.role, Content: m.content})
	}

	maxTokens := defaultMaxTokens
	if req.MaxOutputTokens != nil {
		maxTokens = *req.MaxOutputTokens
	} else {
		warnings = append(warnings, canon.RuntimeWarning{Code: warnDefaultMaxTokensApplied, Message: fmt.Sprintf("max_output_tokens not set; defaulting to %d for anthropic", defaultMaxTokens)})
	}

	wire := wireRequest{
		Model:         req.Model.ModelID,
		MaxTokens:     maxTokens,
		Messages:      wireMessages,
		System:        system,
		Tools:         tools,
		ToolChoice:    toolChoice,
		OutputConfig:  outputConfig,
		StopSequences: req.Stop,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Metadata:      metadata,
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return translate.EncodeResult{}, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
	}

	return translate.EncodeResult{Payload: payload, Warnings: warnings}, nil
}

func validateProviderHint(req canon.ProviderRequest) error {
	if req.Model.ProviderHint != nil && !req.Model.ProviderHint.Equal(canon.ProviderAnthropic) {
		return protocolError("provider_hint must be anthropic")
	}
	return nil
}

func splitSystemPrefix(messages []canon.Message) ([]json.RawMessage, []canon.Message, error) {
	index := 0
	for index < len(messages) && messages[index].Role == canon.RoleSystem {
		index++
	}
	for _, m := range messages[index:] {
		if m.Role == canon.RoleSystem {
			return nil, nil, protocolError("system messages must form a contiguous prefix for anthropic")
		}
	}

	var blocks []json.RawMessage
	for _, m := range messages[:index] {
		for _, part := range m.Content {
			text, ok := part.(canon.TextPart)
			if !ok {
				return nil, nil, protocolError("system messages only support text content")
			}
			block, err := json.Marshal(map[string]string{"type": "text", "text": text.Text})
			if err != nil {
				return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
			}
			blocks = append(blocks, block)
		}
	}

	return blocks, messages[index:], nil
}

type mappedMessage struct {
	role    string
	content []json.RawMessage
}

func mapNonSystemMessages(req canon.ProviderRequest, messages []canon.Message) ([]mappedMessage, []canon.RuntimeWarning, error) {
	var mapped []mappedMessage
	var warnings []canon.RuntimeWarning
	seenToolIDs := make(map[string]struct{})

	for _, msg := range messages {
		var role string
		switch msg.Role {
		case canon.RoleUser, canon.RoleTool:
			role = "user"
		case canon.RoleAssistant:
			role = "assistant"
		default:
			return nil, nil, protocolError(fmt.Sprintf("unexpected message role %q after system prefix", msg.Role))
		}

		var blocks []json.RawMessage
		for _, part := range msg.Content {
			switch v := part.(type) {
			case canon.TextPart:
				if msg.Role == canon.RoleTool {
					return nil, nil, protocolError("tool messages must contain tool_result content only")
				}
				block, err := json.Marshal(map[string]string{"type": "text", "text": v.Text})
				if err != nil {
					return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
				}
				blocks = append(blocks, block)
			case canon.ThinkingPart:
				warnings = append(warnings, canon.RuntimeWarning{Code: warnDroppedThinkingOnEncode, Message: "dropped thinking content part on encode"})
			case canon.ToolCallPart:
				if msg.Role != canon.RoleAssistant {
					return nil, nil, protocolError("tool_call content is only valid in assistant messages")
				}
				args, err := canon.CanonicalizeRaw(v.ArgumentsJSON)
				if err != nil {
					return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
				}
				if !isJSONObject(args) {
					return nil, nil, protocolError(fmt.Sprintf("tool_call %q arguments_json must be a JSON object", v.Name))
				}
				seenToolIDs[v.ID] = struct{}{}
				block, err := json.Marshal(map[string]json.RawMessage{
					"type":  json.RawMessage(`"tool_use"`),
					"id":    mustJSONString(v.ID),
					"name":  mustJSONString(v.Name),
					"input": args,
				})
				if err != nil {
					return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
				}
				blocks = append(blocks, block)
			case canon.ToolResultPart:
				if msg.Role != canon.RoleTool {
					return nil, nil, protocolError("tool_result content is only valid in tool messages")
				}
				if _, ok := seenToolIDs[v.ToolCallID]; !ok {
					return nil, nil, protocolError(fmt.Sprintf("tool_result references unknown tool_call_id: %s", v.ToolCallID))
				}
				content, err := toolResultContentBlocks(v.Content)
				if err != nil {
					return nil, nil, err
				}
				block, err := json.Marshal(map[string]any{
					"type":         "tool_result",
					"tool_use_id":  v.ToolCallID,
					"content":      content,
				})
				if err != nil {
					return nil, nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
				}
				blocks = append(blocks, block)
			default:
				return nil, nil, protocolError(fmt.Sprintf("unsupported content part type %T", part))
			}
		}

		if len(blocks) == 0 {
			return nil, nil, protocolError("message content must contain at least one encodable part")
		}

		mapped = append(mapped, mappedMessage{role: role, content: blocks})
	}

	return mapped, warnings, nil
}

func toolResultContentBlocks(parts []canon.ContentPart) ([]map[string]string, error) {
	blocks := make([]map[string]string, 0, len(parts))
	for _, part := range parts {
		text, ok := part.(canon.TextPart)
		if !ok {
			return nil, protocolError("tool_result parts content must contain only text parts")
		}
		blocks = append(blocks, map[string]string{"type": "text", "text": text.Text})
	}
	return blocks, nil
}

func mergeConsecutiveMessages(messages []mappedMessage) []mappedMessage {
	var merged []mappedMessage
	for _, m := range messages {
		if len(merged) > 0 && merged[len(merged)-1].role == m.role {
			last := &merged[len(merged)-1]
			last.content = append(last.content, m.content...)
			if last.role == "user" {
				reorderToolResultsFirst(last.content)
			}
			continue
		}
		next := mappedMessage{role: m.role, content: append([]json.RawMessage(nil), m.content...)}
		if next.role == "user" {
			reorderToolResultsFirst(next.content)
		}
		merged = append(merged, next)
	}
	return merged
}

func reorderToolResultsFirst(content []json.RawMessage) {
	toolResults := make([]json.RawMessage, 0, len(content))
	others := make([]json.RawMessage, 0, len(content))
	for _, block := range content {
		if blockType(block) == "tool_result" {
			toolResults = append(toolResults, block)
		} else {
			others = append(others, block)
		}
	}
	copy(content, append(toolResults, others...))
}

func blockType(raw json.RawMessage) string {
	var probe struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &probe)
	return probe.Type
}

func validateToolOrdering(req canon.ProviderRequest, messages []mappedMessage) error {
	for i, m := range messages {
		if m.role != "assistant" {
			continue
		}
		var pendingIDs []string
		for _, block := range m.content {
			var probe struct {
				Type string `json:"type"`
				ID   string `json:"id"`
			}
			_ = json.Unmarshal(block, &probe)
			if probe.Type == "tool_use" {
				pendingIDs = append(pendingIDs, probe.ID)
			}
		}
		if len(pendingIDs) == 0 {
			continue
		}

		if i+1 >= len(messages) {
			return protocolError("assistant tool_use requires a following user tool_result message")
		}
		next := messages[i+1]
		if next.role != "user" {
			return protocolError("assistant tool_use must be followed by a user message containing tool_result blocks")
		}

		var prefixIDs []string
		for _, block := range next.content {
			var probe struct {
				Type      string `json:"type"`
				ToolUseID string `json:"tool_use_id"`
			}
			_ = json.Unmarshal(block, &probe)
			if probe.Type != "tool_result" {
				break
			}
			prefixIDs = append(prefixIDs, probe.ToolUseID)
		}
		if len(prefixIDs) == 0 {
			return protocolError("assistant tool_use requires tool_result blocks at the start of the next user message")
		}

		for _, pending := range pendingIDs {
			found := false
			for _, id := range prefixIDs {
				if id == pending {
					found = true
					break
				}
			}
			if !found {
				return protocolError(fmt.Sprintf("missing tool_result for assistant tool_use id %q in following user message", pending))
			}
		}
	}
	return nil
}

func mapTools(tools []canon.ToolDefinition) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(tools))
	for _, tool := range tools {
		if strings.TrimSpace(tool.Name) == "" {
			return nil, protocolError("tool definitions require non-empty names")
		}
		if len([]rune(tool.Name)) > 128 {
			return nil, protocolError(fmt.Sprintf("tool %q name exceeds 128 characters", tool.Name))
		}
		schema, err := canon.CanonicalizeRaw(tool.ParametersSchema)
		if err != nil {
			return nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
		}
		if !isJSONObject(schema) {
			return nil, protocolError(fmt.Sprintf("tool %q parameters_schema must be a JSON object", tool.Name))
		}
		mapped := map[string]json.RawMessage{
			"name":         mustJSONString(tool.Name),
			"input_schema": schema,
		}
		if tool.Description != "" {
			mapped["description"] = mustJSONString(tool.Description)
		}
		raw, err := json.Marshal(mapped)
		if err != nil {
			return nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
		}
		out = append(out, raw)
	}
	return out, nil
}

func mapToolChoice(req canon.ProviderRequest) (json.RawMessage, error) {
	choice := req.ToolChoice
	if choice == nil {
		choice = canon.ToolChoiceAuto{}
	}

	if len(req.Tools) == 0 {
		switch choice.(type) {
		case canon.ToolChoiceRequired, canon.ToolChoiceSpecific:
			return nil, protocolError("tool_choice requires at least one tool definition")
		}
	}

	switch v := choice.(type) {
	case canon.ToolChoiceNone:
		return json.Marshal(map[string]string{"type": "none"})
	case canon.ToolChoiceAuto:
		return json.Marshal(map[string]string{"type": "auto"})
	case canon.ToolChoiceRequired:
		return json.Marshal(map[string]string{"type": "any"})
	case canon.ToolChoiceSpecific:
		if strings.TrimSpace(v.Name) == "" {
			return nil, protocolError("tool_choice specific requires a non-empty tool name")
		}
		found := false
		for _, tool := range req.Tools {
			if tool.Name == v.Name {
				found = true
				break
			}
		}
		if !found {
			return nil, protocolError(fmt.Sprintf("tool_choice specific references unknown tool: %s", v.Name))
		}
		return json.Marshal(map[string]any{"type": "tool", "name": v.Name, "disable_parallel_tool_use": true})
	default:
		return nil, protocolError(fmt.Sprintf("unknown tool choice %T", choice))
	}
}

func mapResponseFormat(req canon.ProviderRequest, messages []mappedMessage) (json.RawMessage, error) {
	format := req.ResponseFormat
	if format == nil {
		format = canon.ResponseFormatText{}
	}
	switch v := format.(type) {
	case canon.ResponseFormatText:
		return nil, nil
	case canon.ResponseFormatJSONObject:
		if err := validateNoPrefillAssistant(messages); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{
			"format": map[string]any{
				"type": "json_schema",
				"schema": map[string]any{
					"type":                 "object",
					"additionalProperties": true,
				},
			},
		})
	case canon.ResponseFormatJSONSchema:
		if err := validateNoPrefillAssistant(messages); err != nil {
			return nil, err
		}
		schema, err := canon.CanonicalizeRaw(v.Schema)
		if err != nil {
			return nil, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationEncode, Provider: canon.ProviderAnthropic, Message: err.Error()}
		}
		return json.Marshal(map[string]json.RawMessage{
			"format": mustMarshal(map[string]json.RawMessage{
				"type":   json.RawMessage(`"json_schema"`),
				"schema": schema,
			}),
		})
	default:
		return nil, protocolError(fmt.Sprintf("unknown response format %T", format))
	}
}

func validateNoPrefillAssistant(messages []mappedMessage) error {
	if len(messages) > 0 && messages[len(messages)-1].role == "assistant" {
		return protocolError("json response formats are incompatible with assistant-prefill final messages")
	}
	return nil
}

func mapMetadata(metadata map[string]string) (json.RawMessage, []canon.RuntimeWarning) {
	var warnings []canon.RuntimeWarning
	out := map[string]string{}
	if userID, ok := metadata["user_id"]; ok {
		out["user_id"] = userID
	}
	for key := range metadata {
		if key != "user_id" {
			warnings = append(warnings, canon.RuntimeWarning{Code: warnDroppedUnsupportedMetadataKeys, Message: "anthropic metadata only supports user_id; unsupported keys dropped"})
			break
		}
	}
	if len(out) == 0 {
		return nil, warnings
	}
	raw, _ := json.Marshal(out)
	return raw, warnings
}

// --- decode ---

// Decode implements translate.Translator.
func (Translator) Decode(body []byte, reqCtx canon.RequestContext) (canon.ProviderResponse, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return canon.ProviderResponse{}, &bridgeerrors.SerializationError{Location: bridgeerrors.LocationDecode, Provider: canon.ProviderAnthropic, Message: "malformed anthropic response body: " + err.Error()}
	}

	if errRaw, ok := root["error"]; ok && len(errRaw) > 0 && string(errRaw) != "null" {
		return canon.ProviderResponse{}, decodeErrorEnvelope(root, errRaw)
	}

	model := decodeString(root["model"])
	if model == "" {
		model = "<unknown-model>"
	}

	role := decodeString(root["role"])
	if role == "" {
		return canon.ProviderResponse{}, protocolError("anthropic response missing role")
	}
	if role != "assistant" {
		return canon.ProviderResponse{}, protocolError(fmt.Sprintf("anthropic response role must be assistant, got %s", role))
	}

	stopReason, ok := root["stop_reason"]
	if !ok || string(stopReason) == "null" {
		return canon.ProviderResponse{}, protocolError("anthropic response missing stop_reason")
	}
	stopReasonStr := decodeString(stopReason)

	var blocks []json.RawMessage
	if raw, ok := root["content"]; ok {
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return canon.ProviderResponse{}, protocolError("anthropic response missing content array")
		}
	} else {
		return canon.ProviderResponse{}, protocolError("anthropic response missing content array")
	}

	var warnings []canon.RuntimeWarning
	var content []canon.ContentPart
	var textBlocks []string

	for _, raw := range blocks {
		var block map[string]json.RawMessage
		if err := json.Unmarshal(raw, &block); err != nil {
			return canon.ProviderResponse{}, protocolError("anthropic content block must be object")
		}
		blockTypeStr := decodeString(block["type"])
		if blockTypeStr == "" {
			return canon.ProviderResponse{}, protocolError("anthropic content block missing type")
		}

		switch blockTypeStr {
		case "text":
			text := decodeString(block["text"])
			textBlocks = append(textBlocks, text)
			content = append(content, canon.TextPart{Text: text})
		case "tool_use":
			id := decodeString(block["id"])
			name := decodeString(block["name"])
			if id == "" || name == "" {
				return canon.ProviderResponse{}, protocolError("tool_use block missing id or name")
			}
			input, ok := block["input"]
			if !ok {
				return canon.ProviderResponse{}, protocolError("tool_use block missing input")
			}
			if !isJSONObject(input) {
				return canon.ProviderResponse{}, protocolError("tool_use input must be a JSON object")
			}
			content = append(content, canon.ToolCallPart{ID: id, Name: name, ArgumentsJSON: input})
		case "thinking":
			content = append(content, canon.ThinkingPart{Text: decodeString(block["thinking"]), Provider: providerPtr(canon.ProviderAnthropic)})
		case "redacted_thinking":
			content = append(content, canon.ThinkingPart{Text: "<redacted>"})
			warnings = append(warnings, canon.RuntimeWarning{Code: warnRedactedThinking, Message: "anthropic redacted_thinking block mapped to canonical placeholder text"})
		default:
			warnings = append(warnings, canon.RuntimeWarning{Code: warnUnknownContentBlockMapped, Message: fmt.Sprintf("anthropic content block type %q mapped to canonical text via JSON", blockTypeStr)})
			content = append(content, canon.TextPart{Text: string(raw)})
		}
	}

	if len(content) == 0 {
		warnings = append(warnings, canon.RuntimeWarning{Code: warnEmptyOutput, Message: "anthropic response contained no content blocks"})
	}

	finishReason, fw := mapFinishReason(stopReasonStr)
	warnings = append(warnings, fw...)

	usage, uw := decodeUsage(root["usage"])
	warnings = append(warnings, uw...)

	structuredOutput, sw := decodeStructuredOutput(reqCtx.ResponseFormat, textBlocks)
	warnings = append(warnings, sw...)

	return canon.ProviderResponse{
		Output:       canon.AssistantOutput{Content: content, StructuredOutput: structuredOutput},
		Usage:        usage,
		Provider:     canon.ProviderAnthropic,
		Model:        model,
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

func mapFinishReason(stopReason string) (canon.FinishReason, []canon.RuntimeWarning) {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return canon.FinishStop, nil
	case "max_tokens":
		return canon.FinishLength, nil
	case "tool_use":
		return canon.FinishToolCalls, nil
	case "refusal":
		return canon.FinishContentFilter, nil
	case "pause_turn":
		return canon.FinishOther, nil
	default:
		return canon.FinishOther, []canon.RuntimeWarning{{Code: warnUnknownStopReason, Message: fmt.Sprintf("unknown anthropic stop_reason %q mapped to other", stopReason)}}
	}
}

func decodeUsage(raw json.RawMessage) (canon.Usage, []canon.RuntimeWarning) {
	if len(raw) == 0 || string(raw) == "null" {
		return canon.Usage{}, []canon.RuntimeWarning{{Code: warnUsageMissing, Message: "anthropic response missing usage object"}}
	}
	var wire struct {
		InputTokens              *uint64 `json:"input_tokens"`
		CacheCreationInputTokens *uint64 `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     *uint64 `json:"cache_read_input_tokens"`
		OutputTokens             *uint64 `json:"output_tokens"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return canon.Usage{}, []canon.RuntimeWarning{{Code: warnUsageMissing, Message: "anthropic usage object was malformed"}}
	}

	var warnings []canon.RuntimeWarning
	if wire.InputTokens == nil || wire.OutputTokens == nil {
		warnings = append(warnings, canon.RuntimeWarning{Code: warnUsagePartial, Message: "anthropic usage object missing required token fields"})
	}

	var billedInput *uint64
	if wire.InputTokens != nil {
		total := *wire.InputTokens
		if wire.CacheCreationInputTokens != nil {
			total += *wire.CacheCreationInputTokens
		}
		if wire.CacheReadInputTokens != nil {
			total += *wire.CacheReadInputTokens
		}
		billedInput = &total
	}

	var totalTokens *uint64
	if billedInput != nil && wire.OutputTokens != nil {
		total := *billedInput + *wire.OutputTokens
		totalTokens = &total
	}

	return canon.Usage{
		InputTokens:       billedInput,
		OutputTokens:      wire.OutputTokens,
		CachedInputTokens: wire.CacheReadInputTokens,
		TotalTokens:       totalTokens,
	}, warnings
}

func decodeStructuredOutput(format canon.ResponseFormat, textBlocks []string) (json.RawMessage, []canon.RuntimeWarning) {
	switch format.(type) {
	case canon.ResponseFormatText, nil:
		return nil, nil
	case canon.ResponseFormatJSONSchema:
		if len(textBlocks) == 0 {
			return nil, nil
		}
		return parseJSONWithWarning(textBlocks[0])
	case canon.ResponseFormatJSONObject:
		if len(textBlocks) == 0 {
			return nil, []canon.RuntimeWarning{{Code: warnStructuredOutputParseFailed, Message: "json_object requested but response contained no text blocks"}}
		}
		for _, text := range textBlocks {
			var value any
			if err := json.Unmarshal([]byte(text), &value); err == nil {
				if _, ok := value.(map[string]any); ok {
					out, _ := json.Marshal(value)
					return out, nil
				}
			}
		}
		combined := strings.Join(textBlocks, "\n")
		if objText, ok := extractFirstJSONObject(combined); ok {
			if parsed, warnings := parseJSONWithWarning(objText); parsed != nil {
				var value any
				if err := json.Unmarshal(parsed, &value); err == nil {
					if _, ok := value.(map[string]any); ok {
						return parsed, warnings
					}
				}
			}
		}
		return nil, []canon.RuntimeWarning{{Code: warnStructuredOutputParseFailed, Message: "failed to parse json_object structured output from anthropic text blocks"}}
	default:
		return nil, nil
	}
}

func parseJSONWithWarning(text string) (json.RawMessage, []canon.RuntimeWarning) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, []canon.RuntimeWarning{{Code: warnStructuredOutputParseFailed, Message: "failed to parse structured output JSON: " + err.Error()}}
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, []canon.RuntimeWarning{{Code: warnStructuredOutputParseFailed, Message: err.Error()}}
	}
	return out, nil
}

func extractFirstJSONObject(text string) (string, bool) {
	var start = -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range text {
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

type errorEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func decodeErrorEnvelope(root map[string]json.RawMessage, errRaw json.RawMessage) error {
	var env errorEnvelope
	_ = json.Unmarshal(errRaw, &env)
	message := env.Message
	if env.Type != "" {
		message = fmt.Sprintf("anthropic error: %s [type=%s]", env.Message, env.Type)
	} else {
		message = fmt.Sprintf("anthropic error: %s", env.Message)
	}
	return &bridgeerrors.ProviderProtocolError{Provider: canon.ProviderAnthropic, RequestID: decodeString(root["request_id"]), Message: message}
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}

func mustJSONString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

func mustMarshal(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}

func protocolError(message string) error {
	return &bridgeerrors.ProviderProtocolError{Provider: canon.ProviderAnthropic, Message: message}
}

func providerPtr(p canon.ProviderID) *canon.ProviderID { return &p }

type wireModelEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type wireModelsList struct {
	Data []wireModelEntry `json:"data"`
}

// DecodeModelsList decodes a GET /v1/models response into catalog entries.
// Anthropic's model-list endpoint reports no context window or output
// token limits, so those fields are always left nil rather than guessed;
// tool/structured-output support is taken from the adapter's declared
// capabilities since the endpoint does not report per-model capabilities.
func DecodeModelsList(body []byte, capabilities canon.ProviderCapabilities) ([]canon.ModelInfo, error) {
	var list wireModelsList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, protocolError("anthropic models payload must be a JSON object: " + err.Error())
	}

	seen := make(map[string]struct{}, len(list.Data))
	models := make([]canon.ModelInfo, 0, len(list.Data))
	for i, entry := range list.Data {
		modelID := strings.TrimSpace(entry.ID)
		if modelID == "" {
			return nil, protocolError(fmt.Sprintf("anthropic models payload entry has empty id at index %d", i))
		}
		if _, dup := seen[modelID]; dup {
			continue
		}
		seen[modelID] = struct{}{}

		info := canon.ModelInfo{
			Provider:                 canon.ProviderAnthropic,
			ModelID:                  modelID,
			SupportsTools:            capabilities.SupportsTools,
			SupportsStructuredOutput: capabilities.SupportsStructuredOutput,
		}
		if entry.DisplayName != "" {
			name := entry.DisplayName
			info.DisplayName = &name
		}
		models = append(models, info)
	}
	return models, nil
}
