// Package handoff normalizes a conversation history produced by one
// provider so it can be replayed against another. The only thing that
// doesn't travel as-is across providers is reasoning/thinking content:
// a provider's thinking text is only meaningful to a model in the same
// API family that produced it, so handoff folds it to plain text,
// fenced for visibility, whenever it crosses a family boundary.
package handoff

import (
	"fmt"

	"github.com/llmbridge/llmbridge/internal/canon"
)

type apiFamily struct {
	kind   apiFamilyKind
	custom string
}

type apiFamilyKind uint8

const (
	familyOpenAICompatible apiFamilyKind = iota
	familyAnthropic
	familyCustom
)

func (a apiFamily) equal(b apiFamily) bool {
	if a.kind != b.kind {
		return false
	}
	return a.kind != familyCustom || a.custom == b.custom
}

// providerFamily groups OpenAI and OpenRouter together, since both speak
// the OpenAI-compatible chat/response wire shape and share thinking-content
// conventions; Anthropic stands alone; each custom provider is its own
// family, since a caller-registered adapter cannot be assumed compatible
// with any other provider's thinking-content format.
func providerFamily(provider canon.ProviderID) apiFamily {
	switch {
	case provider.Equal(canon.ProviderOpenAI), provider.Equal(canon.ProviderOpenRouter):
		return apiFamily{kind: familyOpenAICompatible}
	case provider.Equal(canon.ProviderAnthropic):
		return apiFamily{kind: familyAnthropic}
	default:
		return apiFamily{kind: familyCustom, custom: provider.String()}
	}
}

// NormalizeMessages returns messages rewritten for replay against
// targetProvider. Only Assistant messages are touched; every other role
// passes through unchanged. Within an Assistant message, a ThinkingPart
// whose Provider is in the same API family as targetProvider is left
// alone; anything else (a ThinkingPart from a different family, or one
// with no recorded provider at all) becomes a TextPart wrapping the
// thinking text in a "<thinking>...</thinking>" fence. The input slice and
// its messages are never mutated; normalizing an already-normalized history
// is a no-op.
func NormalizeMessages(messages []canon.Message, targetProvider canon.ProviderID) []canon.Message {
	normalized := make([]canon.Message, len(messages))
	for i, message := range messages {
		if message.Role != canon.RoleAssistant {
			normalized[i] = message
			continue
		}
		normalized[i] = canon.Message{
			Role:    message.Role,
			Content: normalizeAssistantContent(message.Content, targetProvider),
		}
	}
	return normalized
}

func normalizeAssistantContent(parts []canon.ContentPart, targetProvider canon.ProviderID) []canon.ContentPart {
	target := providerFamily(targetProvider)
	normalized := make([]canon.ContentPart, len(parts))
	for i, part := range parts {
		thinking, ok := part.(canon.ThinkingPart)
		if !ok {
			normalized[i] = part
			continue
		}
		if thinking.Provider != nil && providerFamily(*thinking.Provider).equal(target) {
			normalized[i] = part
			continue
		}
		normalized[i] = canon.TextPart{Text: fmt.Sprintf("<thinking>%s</thinking>", thinking.Text)}
	}
	return normalized
}
