// Package canon defines the provider-agnostic canonical domain model shared
// by every translator, adapter, and the runtime. Canonical values are
// immutable once produced; nothing in this package performs I/O.
package canon

import (
	"encoding/json"
	"fmt"
	"strings"
)

type providerKind uint8

const (
	providerKindOpenAI providerKind = iota
	providerKindAnthropic
	providerKindOpenRouter
	providerKindCustom
)

// ProviderID identifies one upstream LLM provider. The set is closed for the
// three built-in providers; NewCustomProviderID mints additional values for
// callers that register their own adapter, so no raw provider string ever
// reaches the canonical surface unvalidated.
type ProviderID struct {
	kind   providerKind
	custom string
}

// Built-in provider identities.
var (
	ProviderOpenAI     = ProviderID{kind: providerKindOpenAI}
	ProviderAnthropic  = ProviderID{kind: providerKindAnthropic}
	ProviderOpenRouter = ProviderID{kind: providerKindOpenRouter}
)

// NewCustomProviderID mints a ProviderID for a caller-registered adapter
// beyond the three built-ins. name must be non-empty.
func NewCustomProviderID(name string) (ProviderID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ProviderID{}, fmt.Errorf("canon: custom provider id must not be empty")
	}
	return ProviderID{kind: providerKindCustom, custom: name}, nil
}

// IsCustom reports whether p was minted via NewCustomProviderID.
func (p ProviderID) IsCustom() bool {
	return p.kind == providerKindCustom
}

// String returns the stable, lowercase, snake_case-compatible identifier.
func (p ProviderID) String() string {
	switch p.kind {
	case providerKindOpenAI:
		return "openai"
	case providerKindAnthropic:
		return "anthropic"
	case providerKindOpenRouter:
		return "openrouter"
	case providerKindCustom:
		return p.custom
	default:
		return "unknown"
	}
}

// Equal reports whether p and other identify the same provider.
func (p ProviderID) Equal(other ProviderID) bool {
	if p.kind != other.kind {
		return false
	}
	if p.kind == providerKindCustom {
		return p.custom == other.custom
	}
	return true
}

// sortOrder fixes the deterministic provider ordering used by the catalog
// and registry: openai, anthropic, openrouter, then custom providers
// lexicographically by name.
func (p ProviderID) sortOrder() (int, string) {
	switch p.kind {
	case providerKindOpenAI:
		return 0, ""
	case providerKindAnthropic:
		return 1, ""
	case providerKindOpenRouter:
		return 2, ""
	default:
		return 3, p.custom
	}
}

// CompareProviderIDs orders two ProviderID values deterministically.
func CompareProviderIDs(a, b ProviderID) int {
	aOrder, aName := a.sortOrder()
	bOrder, bName := b.sortOrder()
	if aOrder != bOrder {
		return aOrder - bOrder
	}
	return strings.Compare(aName, bName)
}

func parseProviderID(s string) (ProviderID, error) {
	switch s {
	case "openai":
		return ProviderOpenAI, nil
	case "anthropic":
		return ProviderAnthropic, nil
	case "openrouter":
		return ProviderOpenRouter, nil
	case "":
		return ProviderID{}, fmt.Errorf("canon: empty provider id")
	default:
		return NewCustomProviderID(s)
	}
}

// ParseProviderID resolves a lowercase provider identifier (as written in
// configuration or a CLI flag) to a ProviderID, minting a custom identity
// for anything other than the three built-ins.
func ParseProviderID(s string) (ProviderID, error) {
	return parseProviderID(s)
}

// MarshalJSON implements json.Marshaler with a plain lowercase string.
func (p ProviderID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ProviderID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := parseProviderID(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
