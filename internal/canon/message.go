package canon

import (
	"encoding/json"
	"fmt"
)

// MessageRole is the closed set of message authors.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is a single entry in a conversation, addressed to or from one
// author role, carrying an ordered sequence of content parts.
//
// Invariant: ToolCallPart only appears inside Assistant messages;
// ToolResultPart only appears inside Tool messages. Translators validate
// this at encode time rather than trusting callers.
type Message struct {
	Role    MessageRole
	Content []ContentPart
}

type wireMessage struct {
	Role    MessageRole       `json:"role"`
	Content []wireContentPart `json:"content"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	content := make([]wireContentPart, 0, len(m.Content))
	for _, part := range m.Content {
		wire, err := toWireContentPart(part)
		if err != nil {
			return nil, err
		}
		content = append(content, wire)
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	content := make([]ContentPart, 0, len(wire.Content))
	for _, w := range wire.Content {
		part, err := fromWireContentPart(w)
		if err != nil {
			return err
		}
		content = append(content, part)
	}
	m.Role = wire.Role
	m.Content = content
	return nil
}

// ToolChoice is the closed tagged-variant set controlling whether and how
// the model must call a tool. A nil ToolChoice is treated as
// ToolChoiceAuto{}, the default.
type ToolChoice interface {
	toolChoiceKind() string
	isToolChoice()
}

// ToolChoiceNone forbids tool calls entirely.
type ToolChoiceNone struct{}

func (ToolChoiceNone) isToolChoice()          {}
func (ToolChoiceNone) toolChoiceKind() string { return "none" }

// ToolChoiceAuto lets the model decide whether to call a tool. This is the
// default when no ToolChoice is supplied.
type ToolChoiceAuto struct{}

func (ToolChoiceAuto) isToolChoice()          {}
func (ToolChoiceAuto) toolChoiceKind() string { return "auto" }

// ToolChoiceRequired forces the model to call some declared tool.
type ToolChoiceRequired struct{}

func (ToolChoiceRequired) isToolChoice()          {}
func (ToolChoiceRequired) toolChoiceKind() string { return "required" }

// ToolChoiceSpecific forces the model to call the named tool.
type ToolChoiceSpecific struct {
	Name string
}

func (ToolChoiceSpecific) isToolChoice()          {}
func (ToolChoiceSpecific) toolChoiceKind() string { return "specific" }

type wireToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// MarshalToolChoice encodes a ToolChoice to its canonical wire shape.
func MarshalToolChoice(choice ToolChoice) (json.RawMessage, error) {
	if choice == nil {
		choice = ToolChoiceAuto{}
	}
	switch v := choice.(type) {
	case ToolChoiceNone:
		return json.Marshal(wireToolChoice{Type: "none"})
	case ToolChoiceAuto:
		return json.Marshal(wireToolChoice{Type: "auto"})
	case ToolChoiceRequired:
		return json.Marshal(wireToolChoice{Type: "required"})
	case ToolChoiceSpecific:
		return json.Marshal(wireToolChoice{Type: "specific", Name: v.Name})
	default:
		return nil, fmt.Errorf("canon: unknown tool choice type %T", choice)
	}
}

// UnmarshalToolChoice decodes a canonical ToolChoice.
func UnmarshalToolChoice(data json.RawMessage) (ToolChoice, error) {
	if len(data) == 0 {
		return ToolChoiceAuto{}, nil
	}
	var wire wireToolChoice
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	switch wire.Type {
	case "none":
		return ToolChoiceNone{}, nil
	case "auto":
		return ToolChoiceAuto{}, nil
	case "required":
		return ToolChoiceRequired{}, nil
	case "specific":
		return ToolChoiceSpecific{Name: wire.Name}, nil
	default:
		return nil, fmt.Errorf("canon: unknown tool choice discriminator %q", wire.Type)
	}
}

// ResponseFormat is the closed tagged-variant set describing how the model
// should shape its output. Default is ResponseFormatText{}.
type ResponseFormat interface {
	responseFormatKind() string
	isResponseFormat()
}

// ResponseFormatText requests plain text output (the default).
type ResponseFormatText struct{}

func (ResponseFormatText) isResponseFormat()          {}
func (ResponseFormatText) responseFormatKind() string { return "text" }

// ResponseFormatJSONObject requests a single JSON object, with no fixed
// schema.
type ResponseFormatJSONObject struct{}

func (ResponseFormatJSONObject) isResponseFormat()          {}
func (ResponseFormatJSONObject) responseFormatKind() string { return "json_object" }

// ResponseFormatJSONSchema requests output conforming to a named JSON
// schema.
type ResponseFormatJSONSchema struct {
	Name   string
	Schema json.RawMessage
}

func (ResponseFormatJSONSchema) isResponseFormat()          {}
func (ResponseFormatJSONSchema) responseFormatKind() string { return "json_schema" }

type wireResponseFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// MarshalResponseFormat encodes a ResponseFormat to its canonical wire
// shape.
func MarshalResponseFormat(format ResponseFormat) (json.RawMessage, error) {
	if format == nil {
		format = ResponseFormatText{}
	}
	switch v := format.(type) {
	case ResponseFormatText:
		return json.Marshal(wireResponseFormat{Type: "text"})
	case ResponseFormatJSONObject:
		return json.Marshal(wireResponseFormat{Type: "json_object"})
	case ResponseFormatJSONSchema:
		return json.Marshal(wireResponseFormat{Type: "json_schema", Name: v.Name, Schema: v.Schema})
	default:
		return nil, fmt.Errorf("canon: unknown response format type %T", format)
	}
}

// UnmarshalResponseFormat decodes a canonical ResponseFormat.
func UnmarshalResponseFormat(data json.RawMessage) (ResponseFormat, error) {
	if len(data) == 0 {
		return ResponseFormatText{}, nil
	}
	var wire wireResponseFormat
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	switch wire.Type {
	case "text":
		return ResponseFormatText{}, nil
	case "json_object":
		return ResponseFormatJSONObject{}, nil
	case "json_schema":
		return ResponseFormatJSONSchema{Name: wire.Name, Schema: wire.Schema}, nil
	default:
		return nil, fmt.Errorf("canon: unknown response format discriminator %q", wire.Type)
	}
}

// FinishReason is the closed set of canonical stop reasons.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
)
