package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spareflow/spareflow/internal/model"
)

// fakeRuleStore is an in-memory RuleStore for resolver tests.
type fakeRuleStore struct {
	rules      map[string]*model.ResolverRule
	increments map[string]int
	mu         sync.Mutex
}

func newFakeRuleStore(rules ...*model.ResolverRule) *fakeRuleStore {
	s := &fakeRuleStore{
		rules:      make(map[string]*model.ResolverRule),
		increments: make(map[string]int),
	}
	for _, rule := range rules {
		s.rules[rule.Pattern] = rule
	}
	return s
}

func (s *fakeRuleStore) GetRule(_ context.Context, pattern string) (*model.ResolverRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules[pattern], nil
}

func (s *fakeRuleStore) IncrementRuleUseCount(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increments[pattern]++
	return nil
}

func TestResolver_ExactTier(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		merchant string
		ticker   string
	}{
		{name: "lowercase", merchant: "walmart", ticker: "WMT"},
		{name: "uppercase", merchant: "STARBUCKS", ticker: "SBUX"},
		{name: "padded", merchant: "  netflix  ", ticker: "NFLX"},
		{name: "two words", merchant: "Home Depot", ticker: "HD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping, err := r.Resolve(ctx, Request{MerchantRaw: tt.merchant})
			require.NoError(t, err)
			assert.Equal(t, tt.ticker, mapping.Ticker)
			assert.InDelta(t, 0.95, mapping.Confidence, 1e-9)
			assert.Equal(t, model.MethodExact, mapping.Method)
			assert.False(t, mapping.NeedsReview)
		})
	}
}

func TestResolver_FuzzyTier(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		merchant   string
		ticker     string
		confidence float64
	}{
		// "walmart" is longer than 5 characters, so containment scores 0.85.
		{name: "long known name", merchant: "Walmart Supercenter", ticker: "WMT", confidence: 0.85},
		{name: "suffix stripped", merchant: "Chipotle Mexican Grill Inc", ticker: "CMG", confidence: 0.85},
		// "apple" is only 5 characters.
		{name: "short known name", merchant: "Apple Store", ticker: "AAPL", confidence: 0.75},
		{name: "merchant inside known name", merchant: "Starbuck", ticker: "SBUX", confidence: 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping, err := r.Resolve(ctx, Request{MerchantRaw: tt.merchant})
			require.NoError(t, err)
			assert.Equal(t, tt.ticker, mapping.Ticker)
			assert.InDelta(t, tt.confidence, mapping.Confidence, 1e-9)
			assert.Equal(t, model.MethodFuzzy, mapping.Method)
			assert.True(t, mapping.NeedsReview)
		})
	}
}

func TestResolver_CategoryTier(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	mapping, err := r.Resolve(ctx, Request{
		MerchantRaw:  "Bob's Corner Market",
		CategoryHint: "Groceries",
	})
	require.NoError(t, err)

	// First ticker of the groceries list, fixed low confidence, review flagged.
	assert.Equal(t, "KR", mapping.Ticker)
	assert.InDelta(t, 0.60, mapping.Confidence, 1e-9)
	assert.Equal(t, model.MethodCategory, mapping.Method)
	assert.True(t, mapping.NeedsReview)
}

func TestResolver_CategoryTierUnknownCategory(t *testing.T) {
	r := New(nil)

	mapping, err := r.Resolve(context.Background(), Request{
		MerchantRaw:  "Bob's Corner Market",
		CategoryHint: "Haberdashery",
	})
	require.NoError(t, err)
	assert.Empty(t, mapping.Ticker)
	assert.Zero(t, mapping.Confidence)
}

func TestResolver_HintTier(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	t.Run("hint embedded in merchant string", func(t *testing.T) {
		mapping, err := r.Resolve(ctx, Request{
			MerchantRaw: "NFLX*SUBSCRIPTION 800-123",
			TickerHint:  "NFLX",
		})
		require.NoError(t, err)
		assert.Equal(t, "NFLX", mapping.Ticker)
		assert.InDelta(t, 0.75, mapping.Confidence, 1e-9)
		assert.Equal(t, model.MethodUserHint, mapping.Method)
	})

	t.Run("hint is a previously seen ticker", func(t *testing.T) {
		mapping, err := r.Resolve(ctx, Request{
			MerchantRaw: "Corner Hair Salon",
			TickerHint:  "tsla",
		})
		require.NoError(t, err)
		assert.Equal(t, "TSLA", mapping.Ticker)
		assert.InDelta(t, 0.65, mapping.Confidence, 1e-9)
		assert.True(t, mapping.NeedsReview)
	})

	t.Run("unknown hint is not accepted", func(t *testing.T) {
		mapping, err := r.Resolve(ctx, Request{
			MerchantRaw: "Corner Hair Salon",
			TickerHint:  "ZZZZ",
		})
		require.NoError(t, err)
		assert.Empty(t, mapping.Ticker)
		assert.Zero(t, mapping.Confidence)
	})
}

func TestResolver_NoMatch(t *testing.T) {
	r := New(nil)

	mapping, err := r.Resolve(context.Background(), Request{MerchantRaw: "Corner Hair Salon"})
	require.NoError(t, err)

	assert.Empty(t, mapping.Ticker)
	assert.Zero(t, mapping.Confidence)
	assert.Equal(t, model.MethodNone, mapping.Method)
	assert.Equal(t, "Unknown", mapping.Category)
	assert.Contains(t, mapping.Reasoning, "manual review")
	assert.True(t, mapping.NeedsReview)
}

func TestResolver_MalformedInputNeverErrors(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	for _, raw := range []string{"", "   ", "\t\n", "!!!###"} {
		mapping, err := r.Resolve(ctx, Request{MerchantRaw: raw})
		require.NoError(t, err)
		assert.Empty(t, mapping.Ticker)
		assert.Zero(t, mapping.Confidence)
	}
}

func TestResolver_RuleTierPrecedesStaticTables(t *testing.T) {
	rules := newFakeRuleStore(&model.ResolverRule{
		Pattern:    "joes diner",
		Ticker:     "EAT",
		Category:   "Dining",
		Confidence: 0.97,
		CreatedAt:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	r := New(rules)

	mapping, err := r.Resolve(context.Background(), Request{MerchantRaw: "Joes Diner"})
	require.NoError(t, err)

	assert.Equal(t, "EAT", mapping.Ticker)
	assert.Equal(t, "Dining", mapping.Category)
	assert.InDelta(t, 0.97, mapping.Confidence, 1e-9)
	assert.False(t, mapping.NeedsReview)
	assert.Equal(t, 1, rules.increments["joes diner"])
}

func TestResolver_RuleConfidenceCarriesReviewFlag(t *testing.T) {
	rules := newFakeRuleStore(&model.ResolverRule{
		Pattern:    "corner bakery",
		Ticker:     "PNRA",
		Category:   "Dining",
		Confidence: 0.80,
		CreatedAt:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	r := New(rules)

	mapping, err := r.Resolve(context.Background(), Request{MerchantRaw: "Corner Bakery"})
	require.NoError(t, err)
	assert.Equal(t, "PNRA", mapping.Ticker)
	assert.True(t, mapping.NeedsReview)
}
