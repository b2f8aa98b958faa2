package canon

import (
	"encoding/json"
	"fmt"
)

// ContentPart is the closed tagged-variant set carried inside message
// content. Concrete implementations are TextPart, ThinkingPart,
// ToolCallPart, and ToolResultPart; callers exhaustively type-switch rather
// than dispatch virtually.
type ContentPart interface {
	contentPartKind() string
	isContentPart()
}

// TextPart is plain assistant/user/system text.
type TextPart struct {
	Text string
}

func (TextPart) isContentPart() {}
func (TextPart) contentPartKind() string { return "text" }

// ThinkingPart carries provider reasoning/thinking content. Provider is nil
// when the thinking text did not originate from a specific provider (e.g.
// after handoff normalization folded it to plain text, it is no longer a
// ThinkingPart at all).
type ThinkingPart struct {
	Text     string
	Provider *ProviderID
}

func (ThinkingPart) isContentPart() {}
func (ThinkingPart) contentPartKind() string { return "thinking" }

// ToolCallPart is a model-issued request to invoke a tool. It may only
// appear in Assistant messages.
type ToolCallPart struct {
	ID            string
	Name          string
	ArgumentsJSON json.RawMessage
}

func (ToolCallPart) isContentPart() {}
func (ToolCallPart) contentPartKind() string { return "tool_call" }

// ToolResultPart carries the result of a tool invocation back to the model.
// It may only appear in Tool messages.
type ToolResultPart struct {
	ToolCallID string
	Content    []ContentPart
}

func (ToolResultPart) isContentPart() {}
func (ToolResultPart) contentPartKind() string { return "tool_result" }

// wireContentPart is the canonical on-the-wire shape for ContentPart: a
// snake_case "type" discriminator plus the variant's own fields flattened
// alongside it.
type wireContentPart struct {
	Type          string            `json:"type"`
	Text          string            `json:"text,omitempty"`
	Provider      *ProviderID       `json:"provider,omitempty"`
	ID            string            `json:"id,omitempty"`
	Name          string            `json:"name,omitempty"`
	ArgumentsJSON json.RawMessage   `json:"arguments_json,omitempty"`
	ToolCallID    string            `json:"tool_call_id,omitempty"`
	Content       []wireContentPart `json:"content,omitempty"`
}

// MarshalContentPart encodes a single ContentPart to its canonical wire
// shape.
func MarshalContentPart(part ContentPart) (json.RawMessage, error) {
	wire, err := toWireContentPart(part)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

func toWireContentPart(part ContentPart) (wireContentPart, error) {
	switch v := part.(type) {
	case TextPart:
		return wireContentPart{Type: "text", Text: v.Text}, nil
	case ThinkingPart:
		return wireContentPart{Type: "thinking", Text: v.Text, Provider: v.Provider}, nil
	case ToolCallPart:
		return wireContentPart{Type: "tool_call", ID: v.ID, Name: v.Name, ArgumentsJSON: v.ArgumentsJSON}, nil
	case ToolResultPart:
		content := make([]wireContentPart, 0, len(v.Content))
		for _, inner := range v.Content {
			w, err := toWireContentPart(inner)
			if err != nil {
				return wireContentPart{}, err
			}
			content = append(content, w)
		}
		return wireContentPart{Type: "tool_result", ToolCallID: v.ToolCallID, Content: content}, nil
	default:
		return wireContentPart{}, fmt.Errorf("canon: unknown content part type %T", part)
	}
}

// UnmarshalContentPart decodes a single canonical content part.
func UnmarshalContentPart(data json.RawMessage) (ContentPart, error) {
	var wire wireContentPart
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	return fromWireContentPart(wire)
}

func fromWireContentPart(wire wireContentPart) (ContentPart, error) {
	switch wire.Type {
	case "text":
		return TextPart{Text: wire.Text}, nil
	case "thinking":
		return ThinkingPart{Text: wire.Text, Provider: wire.Provider}, nil
	case "tool_call":
		return ToolCallPart{ID: wire.ID, Name: wire.Name, ArgumentsJSON: wire.ArgumentsJSON}, nil
	case "tool_result":
		content := make([]ContentPart, 0, len(wire.Content))
		for _, inner := range wire.Content {
			part, err := fromWireContentPart(inner)
			if err != nil {
				return nil, err
			}
			content = append(content, part)
		}
		return ToolResultPart{ToolCallID: wire.ToolCallID, Content: content}, nil
	default:
		return nil, fmt.Errorf("canon: unknown content part discriminator %q", wire.Type)
	}
}

// MarshalContentParts encodes an ordered sequence of content parts.
func MarshalContentParts(parts []ContentPart) (json.RawMessage, error) {
	wires := make([]wireContentPart, 0, len(parts))
	for _, part := range parts {
		wire, err := toWireContentPart(part)
		if err != nil {
			return nil, err
		}
		wires = append(wires, wire)
	}
	if len(wires) == 0 {
		return json.Marshal([]wireContentPart{})
	}
	return json.Marshal(wires)
}

// UnmarshalContentParts decodes an ordered sequence of content parts.
func UnmarshalContentParts(data json.RawMessage) ([]ContentPart, error) {
	var wires []wireContentPart
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, err
	}
	parts := make([]ContentPart, 0, len(wires))
	for _, wire := range wires {
		part, err := fromWireContentPart(wire)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}
