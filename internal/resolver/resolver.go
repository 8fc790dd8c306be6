// Package resolver implements the tiered merchant-to-ticker resolver.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spareflow/spareflow/internal/model"
)

// Tier confidence values. Each tier reports a fixed confidence (or a fixed
// pair for the fuzzy containment check); there is no scoring across tiers.
const (
	exactConfidence        = 0.95
	fuzzyLongConfidence    = 0.85
	fuzzyShortConfidence   = 0.75
	fuzzyWordConfidence    = 0.80
	categoryConfidence     = 0.60
	hintConfidence         = 0.75
	hintReviewedConfidence = 0.65
)

// corporateSuffixes strips filler words before the fuzzy tier runs.
var corporateSuffixes = regexp.MustCompile(`\b(store|shop|inc|llc|corp|company)\b`)

// RuleStore is the read surface of the resolver rule store. Rules learned
// from confirmed resolutions take precedence over the static tables.
type RuleStore interface {
	GetRule(ctx context.Context, pattern string) (*model.ResolverRule, error)
	IncrementRuleUseCount(ctx context.Context, pattern string) error
}

// Request carries one resolution attempt's inputs.
type Request struct {
	MerchantRaw  string
	CategoryHint string
	TickerHint   string
}

// Backend is the pluggable advanced resolution capability. The built-in
// Resolver is the fallback implementation; an external (LLM-backed) service
// is the primary one when configured. Selection happens once at construction
// of the consumer, not per call.
type Backend interface {
	Resolve(ctx context.Context, req Request) (model.MerchantMapping, error)
}

// Resolver matches raw merchant strings against learned rules and static
// tables. It never returns an error for malformed input; an unmatched
// merchant yields an absent ticker at zero confidence.
type Resolver struct {
	rules RuleStore
}

// New creates a resolver. The rule store may be nil, in which case the
// learned-rule tier is skipped.
func New(rules RuleStore) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve runs the tiers strictly in order and returns the first match.
func (r *Resolver) Resolve(ctx context.Context, req Request) (model.MerchantMapping, error) {
	normalized := Normalize(req.MerchantRaw)
	if normalized == "" {
		return noMatch(req.MerchantRaw), nil
	}

	if mapping, ok := r.resolveRule(ctx, normalized); ok {
		return mapping, nil
	}
	if mapping, ok := r.resolveExact(normalized); ok {
		return mapping, nil
	}
	if mapping, ok := r.resolveFuzzy(normalized); ok {
		return mapping, nil
	}
	if mapping, ok := r.resolveCategory(req.CategoryHint); ok {
		return mapping, nil
	}
	if mapping, ok := r.resolveHint(normalized, req.TickerHint); ok {
		return mapping, nil
	}

	return noMatch(req.MerchantRaw), nil
}

// resolveRule consults the learned-rule store for an exact pattern match.
func (r *Resolver) resolveRule(ctx context.Context, normalized string) (model.MerchantMapping, bool) {
	if r.rules == nil {
		return model.MerchantMapping{}, false
	}

	rule, err := r.rules.GetRule(ctx, normalized)
	if err != nil || rule == nil {
		return model.MerchantMapping{}, false
	}

	if incErr := r.rules.IncrementRuleUseCount(ctx, rule.Pattern); incErr != nil {
		slog.Warn("Failed to increment rule use count",
			"pattern", rule.Pattern,
			"error", incErr)
	}

	return model.MerchantMapping{
		Ticker:      rule.Ticker,
		Category:    rule.Category,
		Confidence:  rule.Confidence,
		Method:      model.MethodExact,
		Reasoning:   fmt.Sprintf("Learned rule %q confirmed on %s", rule.Pattern, rule.CreatedAt.Format("2006-01-02")),
		NeedsReview: model.StatusForConfidence(rule.Confidence) != model.ResolutionApproved,
	}, true
}

// resolveExact looks the normalized string up in the static merchant table.
func (r *Resolver) resolveExact(normalized string) (model.MerchantMapping, bool) {
	ticker, ok := merchantTickers[normalized]
	if !ok {
		return model.MerchantMapping{}, false
	}

	return model.MerchantMapping{
		Ticker:     ticker,
		Category:   "Known Merchant",
		Confidence: exactConfidence,
		Method:     model.MethodExact,
		Reasoning:  fmt.Sprintf("Exact match for known merchant %q", normalized),
	}, true
}

// resolveFuzzy strips corporate suffix words and attempts containment and
// word-level matches against the static merchant table.
func (r *Resolver) resolveFuzzy(normalized string) (model.MerchantMapping, bool) {
	cleaned := strings.TrimSpace(corporateSuffixes.ReplaceAllString(normalized, ""))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return model.MerchantMapping{}, false
	}

	// Substring containment in either direction.
	for _, name := range merchantNames {
		if !strings.Contains(cleaned, name) && !strings.Contains(name, cleaned) {
			continue
		}
		ticker := merchantTickers[name]

		confidence := fuzzyShortConfidence
		if len(name) > 5 {
			confidence = fuzzyLongConfidence
		}

		return model.MerchantMapping{
			Ticker:      ticker,
			Category:    "Known Merchant",
			Confidence:  confidence,
			Method:      model.MethodFuzzy,
			Reasoning:   fmt.Sprintf("Fuzzy match: %q contains known merchant %q", cleaned, name),
			NeedsReview: confidence < model.AutoApplyThreshold,
		}, true
	}

	// Word-level match for longer words.
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 3 {
			continue
		}
		ticker, ok := merchantTickers[word]
		if !ok {
			continue
		}

		return model.MerchantMapping{
			Ticker:      ticker,
			Category:    "Known Merchant",
			Confidence:  fuzzyWordConfidence,
			Method:      model.MethodFuzzy,
			Reasoning:   fmt.Sprintf("Fuzzy match: word %q matches known merchant", word),
			NeedsReview: true,
		}, true
	}

	return model.MerchantMapping{}, false
}

// resolveCategory maps a caller-supplied category hint to that category's
// first candidate ticker at a fixed low confidence.
func (r *Resolver) resolveCategory(categoryHint string) (model.MerchantMapping, bool) {
	if categoryHint == "" {
		return model.MerchantMapping{}, false
	}

	tickers, ok := categoryTickers[Normalize(categoryHint)]
	if !ok || len(tickers) == 0 {
		return model.MerchantMapping{}, false
	}

	return model.MerchantMapping{
		Ticker:      tickers[0],
		Category:    categoryHint,
		Confidence:  categoryConfidence,
		Method:      model.MethodCategory,
		Reasoning:   fmt.Sprintf("Category %q suggests %s; low confidence, review required", categoryHint, tickers[0]),
		NeedsReview: true,
	}, true
}

// resolveHint validates a caller-supplied ticker hint.
func (r *Resolver) resolveHint(normalized, tickerHint string) (model.MerchantMapping, bool) {
	hint := strings.ToUpper(strings.TrimSpace(tickerHint))
	if hint == "" {
		return model.MerchantMapping{}, false
	}

	// Hint embedded in the merchant string itself is strong evidence.
	if strings.Contains(strings.ToUpper(normalized), hint) {
		return model.MerchantMapping{
			Ticker:      hint,
			Category:    "User Hint",
			Confidence:  hintConfidence,
			Method:      model.MethodUserHint,
			Reasoning:   fmt.Sprintf("User hint %s appears in merchant string", hint),
			NeedsReview: true,
		}, true
	}

	if _, ok := knownTickers[hint]; ok {
		return model.MerchantMapping{
			Ticker:      hint,
			Category:    "User Hint",
			Confidence:  hintReviewedConfidence,
			Method:      model.MethodUserHint,
			Reasoning:   fmt.Sprintf("User hint %s is a previously seen ticker; review required", hint),
			NeedsReview: true,
		}, true
	}

	return model.MerchantMapping{}, false
}

// noMatch is the canonical unresolved result.
func noMatch(raw string) model.MerchantMapping {
	return model.MerchantMapping{
		Category:    "Unknown",
		Method:      model.MethodNone,
		Reasoning:   fmt.Sprintf("Merchant %q could not be matched; manual review required", strings.TrimSpace(raw)),
		NeedsReview: true,
	}
}
