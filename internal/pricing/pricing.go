// Package pricing turns token usage into an estimated cost against a
// configured table of per-provider, per-model-pattern rates. A missing or
// malformed rule never fails a request: EstimateCost degrades to a nil
// cost plus a stably-coded warning instead, matching the rest of the
// module's "cost is best-effort" posture.
package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/llmbridge/llmbridge/internal/canon"
)

// Rule is one per-provider, per-model-pattern rate entry. ModelPattern is
// either an exact model id or a trailing-"*" prefix wildcard (e.g.
// "gpt-*"); ReasoningCostPerToken is nil when the provider/model has no
// separate reasoning rate.
type Rule struct {
	Provider              canon.ProviderID
	ModelPattern          string
	InputCostPerToken     float64
	OutputCostPerToken    float64
	ReasoningCostPerToken *float64
}

func (r Rule) hasValidRates() bool {
	if !isValidRate(r.InputCostPerToken) || !isValidRate(r.OutputCostPerToken) {
		return false
	}
	return r.ReasoningCostPerToken == nil || isValidRate(*r.ReasoningCostPerToken)
}

func isValidRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate >= 0
}

// Table is an ordered set of pricing rules. Rule order does not affect
// resolution: FindRule always prefers an exact model match over any
// wildcard, and among wildcards prefers the longest matching prefix.
type Table struct {
	rules []Rule
}

// NewTable builds a Table from rules, in any order.
func NewTable(rules []Rule) Table {
	return Table{rules: append([]Rule(nil), rules...)}
}

type matchScore struct {
	exact     bool
	prefixLen int
}

func (a matchScore) beats(b matchScore) bool {
	if a.exact != b.exact {
		return a.exact
	}
	return a.prefixLen > b.prefixLen
}

func matchPattern(pattern, model string) (matchScore, bool) {
	if pattern == model {
		return matchScore{exact: true, prefixLen: len(pattern)}, true
	}
	if pattern == "*" {
		return matchScore{}, true
	}
	prefix, ok := strings.CutSuffix(pattern, "*")
	if !ok {
		return matchScore{}, false
	}
	if strings.HasPrefix(model, prefix) {
		return matchScore{prefixLen: len(prefix)}, true
	}
	return matchScore{}, false
}

// FindRule returns the best-matching rule for provider/model, or false if
// none of the table's rules apply.
func (t Table) FindRule(provider canon.ProviderID, model string) (Rule, bool) {
	var best Rule
	var bestScore matchScore
	found := false

	for _, rule := range t.rules {
		if !rule.Provider.Equal(provider) {
			continue
		}
		score, ok := matchPattern(rule.ModelPattern, model)
		if !ok {
			continue
		}
		if !found || score.beats(bestScore) {
			best = rule
			bestScore = score
			found = true
		}
	}

	return best, found
}

const (
	warnPricingRuleMissing   = "pricing_rule_missing"
	warnPricingRuleInvalid   = "pricing_rule_invalid"
	warnUsageMissingForCost  = "usage_missing_for_cost"
	warnUsagePartial         = "pricing_usage_partial"
	warnReasoningRateMissing = "pricing_reasoning_rate_missing"
)

// EstimateCost matches usage against table and returns an estimated cost
// breakdown, or nil plus a warning when a rule or the usage tokens it needs
// are unavailable. It never returns an error: every failure mode here is
// expected and degrades to a warning instead.
func EstimateCost(provider canon.ProviderID, model string, usage canon.Usage, table Table) (*canon.CostBreakdown, []canon.RuntimeWarning) {
	rule, ok := table.FindRule(provider, model)
	if !ok {
		return nil, []canon.RuntimeWarning{{
			Code:    warnPricingRuleMissing,
			Message: fmt.Sprintf("no pricing rule configured for provider=%s, model=%s", provider, model),
		}}
	}

	if !rule.hasValidRates() {
		return nil, []canon.RuntimeWarning{{
			Code:    warnPricingRuleInvalid,
			Message: fmt.Sprintf("invalid pricing rule for provider=%s, model_pattern=%s", provider, rule.ModelPattern),
		}}
	}

	if usage.InputTokens == nil && usage.OutputTokens == nil && usage.ReasoningTokens == nil {
		return nil, []canon.RuntimeWarning{{
			Code:    warnUsageMissingForCost,
			Message: fmt.Sprintf("usage tokens missing for provider=%s, model=%s", provider, model),
		}}
	}

	var warnings []canon.RuntimeWarning
	if usage.InputTokens == nil || usage.OutputTokens == nil {
		warnings = append(warnings, canon.RuntimeWarning{
			Code:    warnUsagePartial,
			Message: fmt.Sprintf("partial usage for provider=%s, model=%s; missing input or output tokens", provider, model),
		})
	}

	inputCost := float64(derefUint64(usage.InputTokens)) * rule.InputCostPerToken
	outputCost := float64(derefUint64(usage.OutputTokens)) * rule.OutputCostPerToken

	var reasoningCost *float64
	switch {
	case usage.ReasoningTokens != nil && rule.ReasoningCostPerToken != nil:
		cost := float64(*usage.ReasoningTokens) * *rule.ReasoningCostPerToken
		reasoningCost = &cost
	case usage.ReasoningTokens != nil:
		warnings = append(warnings, canon.RuntimeWarning{
			Code:    warnReasoningRateMissing,
			Message: fmt.Sprintf("reasoning tokens provided but no reasoning rate configured for provider=%s, model=%s", provider, model),
		})
	}

	total := inputCost + outputCost
	if reasoningCost != nil {
		total += *reasoningCost
	}

	return &canon.CostBreakdown{
		Currency:      "USD",
		InputCost:     inputCost,
		OutputCost:    outputCost,
		ReasoningCost: reasoningCost,
		TotalCost:     total,
		PricingSource: canon.PricingConfigured,
	}, warnings
}

func derefUint64(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}
