package handoff

import (
	"reflect"
	"testing"

	"github.com/llmbridge/llmbridge/internal/canon"
)

func assistant(parts ...canon.ContentPart) canon.Message {
	return canon.Message{Role: canon.RoleAssistant, Content: parts}
}

func user(parts ...canon.ContentPart) canon.Message {
	return canon.Message{Role: canon.RoleUser, Content: parts}
}

func TestNormalizeIsIdentityWithinSameFamily(t *testing.T) {
	openai := canon.ProviderOpenAI
	messages := []canon.Message{assistant(
		canon.TextPart{Text: "start"},
		canon.ToolCallPart{ID: "call_1", Name: "lookup"},
		canon.ThinkingPart{Text: "reasoning", Provider: &openai},
		canon.TextPart{Text: "end"},
	)}

	normalized := NormalizeMessages(messages, canon.ProviderOpenAI)
	if !reflect.DeepEqual(normalized, messages) {
		t.Fatalf("expected identity normalization, got %#v", normalized)
	}
}

func TestNormalizePreservesNonAssistantMessages(t *testing.T) {
	messages := []canon.Message{user(canon.TextPart{Text: "hi"})}

	normalized := NormalizeMessages(messages, canon.ProviderAnthropic)
	if !reflect.DeepEqual(normalized, messages) {
		t.Fatalf("expected non-assistant messages untouched, got %#v", normalized)
	}
}

func TestNormalizeFoldsThinkingAcrossFamilies(t *testing.T) {
	anthropic := canon.ProviderAnthropic
	messages := []canon.Message{assistant(canon.ThinkingPart{Text: "secret", Provider: &anthropic})}

	normalized := NormalizeMessages(messages, canon.ProviderOpenAI)
	text, ok := normalized[0].Content[0].(canon.TextPart)
	if !ok {
		t.Fatalf("expected thinking to fold to text, got %#v", normalized[0].Content[0])
	}
	if text.Text != "<thinking>secret</thinking>" {
		t.Fatalf("unexpected folded text: %q", text.Text)
	}
}

func TestNormalizeGroupsOpenAIAndOpenRouterTogether(t *testing.T) {
	openrouter := canon.ProviderOpenRouter
	messages := []canon.Message{assistant(canon.ThinkingPart{Text: "reasoning", Provider: &openrouter})}

	normalized := NormalizeMessages(messages, canon.ProviderOpenAI)
	if _, ok := normalized[0].Content[0].(canon.ThinkingPart); !ok {
		t.Fatalf("expected OpenRouter thinking preserved for an OpenAI target, got %#v", normalized[0].Content[0])
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	messages := []canon.Message{assistant(
		canon.TextPart{Text: "portable"},
		canon.ToolCallPart{ID: "call_1", Name: "lookup"},
	)}

	once := NormalizeMessages(messages, canon.ProviderOpenRouter)
	twice := NormalizeMessages(once, canon.ProviderOpenRouter)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected normalization to be idempotent")
	}
}

func TestNormalizeTreatsEachCustomProviderAsItsOwnFamily(t *testing.T) {
	sourceID, err := canon.NewCustomProviderID("acme")
	if err != nil {
		t.Fatalf("custom provider id: %v", err)
	}
	targetID, err := canon.NewCustomProviderID("other")
	if err != nil {
		t.Fatalf("custom provider id: %v", err)
	}
	messages := []canon.Message{assistant(canon.ThinkingPart{Text: "reasoning", Provider: &sourceID})}

	normalized := NormalizeMessages(messages, targetID)
	if _, ok := normalized[0].Content[0].(canon.TextPart); !ok {
		t.Fatalf("expected thinking folded across distinct custom providers, got %#v", normalized[0].Content[0])
	}

	normalizedSame := NormalizeMessages(messages, sourceID)
	if _, ok := normalizedSame[0].Content[0].(canon.ThinkingPart); !ok {
		t.Fatalf("expected thinking preserved for the same custom provider, got %#v", normalizedSame[0].Content[0])
	}
}
