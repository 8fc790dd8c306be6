package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spareflow/spareflow/internal/common"
	"github.com/spareflow/spareflow/internal/model"
	"github.com/spareflow/spareflow/internal/resolver"
	"github.com/spareflow/spareflow/internal/service"
)

// mockStorage is an in-memory implementation of service.Storage covering what
// the queue exercises. Round-up methods are stubs.
type mockStorage struct {
	entries map[string]*model.QueueEntry
	rules   map[string]*model.ResolverRule
	saveErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		entries: make(map[string]*model.QueueEntry),
		rules:   make(map[string]*model.ResolverRule),
	}
}

func (m *mockStorage) SaveQueueEntry(_ context.Context, entry *model.QueueEntry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	clone := *entry
	m.entries[entry.ID] = &clone
	return nil
}

func (m *mockStorage) GetQueueEntry(_ context.Context, id string) (*model.QueueEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	clone := *entry
	return &clone, nil
}

func (m *mockStorage) GetQueueEntriesByStatus(_ context.Context, status model.QueueStatus) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	for _, entry := range m.entries {
		if entry.Status == status {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (m *mockStorage) CountQueueEntriesByStatus(_ context.Context) (map[model.QueueStatus]int, error) {
	counts := make(map[model.QueueStatus]int)
	for _, entry := range m.entries {
		counts[entry.Status]++
	}
	return counts, nil
}

func (m *mockStorage) GetRule(_ context.Context, pattern string) (*model.ResolverRule, error) {
	rule, ok := m.rules[pattern]
	if !ok {
		return nil, nil
	}
	return rule, nil
}

func (m *mockStorage) SaveRule(_ context.Context, rule *model.ResolverRule) error {
	clone := *rule
	m.rules[rule.Pattern] = &clone
	return nil
}

func (m *mockStorage) GetAllRules(_ context.Context) ([]model.ResolverRule, error) {
	var rules []model.ResolverRule
	for _, rule := range m.rules {
		rules = append(rules, *rule)
	}
	return rules, nil
}

func (m *mockStorage) IncrementRuleUseCount(_ context.Context, pattern string) error {
	if rule, ok := m.rules[pattern]; ok {
		rule.UseCount++
	}
	return nil
}

func (m *mockStorage) SaveRoundUpEntry(_ context.Context, _ *model.RoundUpLedgerEntry) error {
	return nil
}

func (m *mockStorage) GetPendingRoundUps(_ context.Context, _ string) ([]model.RoundUpLedgerEntry, error) {
	return nil, nil
}

func (m *mockStorage) GetRoundUpsByUser(_ context.Context, _ string) ([]model.RoundUpLedgerEntry, error) {
	return nil, nil
}

func (m *mockStorage) GetAllRoundUps(_ context.Context) ([]model.RoundUpLedgerEntry, error) {
	return nil, nil
}

func (m *mockStorage) SweepPending(_ context.Context, _, _ string, _ time.Time) ([]model.RoundUpLedgerEntry, error) {
	return nil, nil
}

func (m *mockStorage) GetPreference(_ context.Context, _ string) (*model.UserRoundUpPreference, error) {
	return nil, nil
}

func (m *mockStorage) SavePreference(_ context.Context, _ *model.UserRoundUpPreference) error {
	return nil
}

func (m *mockStorage) Migrate(_ context.Context) error { return nil }
func (m *mockStorage) Close() error                    { return nil }

// recordingSink captures published events.
type recordingSink struct {
	events []model.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event model.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func newTestQueue(store *mockStorage, cfg Config) *Queue {
	cfg.RetryOpts = service.RetryOptions{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
	}
	return NewWithConfig(store, resolver.New(store), cfg)
}

func TestQueue_Submit_AutoApply(t *testing.T) {
	store := newMockStorage()
	sink := &recordingSink{}
	q := newTestQueue(store, Config{Sink: sink})
	ctx := context.Background()

	entry, err := q.Submit(ctx, "tenant-1", "Walmart", "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusAutoApplied, entry.Status)
	require.NotNil(t, entry.Proposal)
	assert.Equal(t, "WMT", entry.Proposal.Ticker)
	assert.GreaterOrEqual(t, entry.Proposal.Confidence, model.AutoApplyThreshold)
	require.NotNil(t, entry.Decision)
	assert.Equal(t, "system", entry.Decision.DecidedBy)

	// Exactly one rule, keyed by the normalized merchant string.
	require.Len(t, store.rules, 1)
	rule := store.rules["walmart"]
	require.NotNil(t, rule)
	assert.Equal(t, "WMT", rule.Ticker)
	assert.Equal(t, model.RuleSourceSystem, rule.Source)

	require.Len(t, sink.events, 1)
	assert.Equal(t, model.EventMappingAutoApplied, sink.events[0].Type)
	assert.Equal(t, entry.ID, sink.events[0].Payload["entry_id"])
}

func TestQueue_Submit_MidConfidenceNeedsReview(t *testing.T) {
	store := newMockStorage()
	sink := &recordingSink{}
	q := newTestQueue(store, Config{Sink: sink})

	entry, err := q.Submit(context.Background(), "tenant-1", "Walmart Supercenter #2313", "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusNeedsReview, entry.Status)
	require.NotNil(t, entry.Proposal)
	assert.Equal(t, "WMT", entry.Proposal.Ticker)
	assert.Less(t, entry.Proposal.Confidence, model.AutoApplyThreshold)
	assert.Nil(t, entry.Decision)

	assert.Empty(t, store.rules, "no rule before an admin decision")
	assert.Empty(t, sink.events, "no event before an admin decision")
}

func TestQueue_Submit_UnresolvedStillQueued(t *testing.T) {
	store := newMockStorage()
	q := newTestQueue(store, Config{})

	entry, err := q.Submit(context.Background(), "tenant-1", "XJQQ-9844-POS", "")
	require.NoError(t, err)

	// Zero confidence is not discarded; it waits for a human.
	assert.Equal(t, model.StatusNeedsReview, entry.Status)
	require.NotNil(t, entry.Proposal)
	assert.False(t, entry.Proposal.Resolved())
	assert.Equal(t, "Unknown", entry.Proposal.Category)
}

func TestQueue_Submit_DuplicatesAreIndependent(t *testing.T) {
	store := newMockStorage()
	q := newTestQueue(store, Config{})
	ctx := context.Background()

	first, err := q.Submit(ctx, "tenant-1", "Chipotle Mexican Grill Inc", "")
	require.NoError(t, err)
	second, err := q.Submit(ctx, "tenant-1", "Chipotle Mexican Grill Inc", "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, store.entries, 2)
}

func TestQueue_AdminApprove(t *testing.T) {
	store := newMockStorage()
	sink := &recordingSink{}
	q := newTestQueue(store, Config{Sink: sink})
	ctx := context.Background()

	entry, err := q.Submit(ctx, "tenant-1", "Apple Store", "")
	require.NoError(t, err)
	require.Equal(t, model.StatusNeedsReview, entry.Status)

	approved, err := q.AdminApprove(ctx, entry.ID, "admin@example.com", "verified")
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, approved.Status)
	require.NotNil(t, approved.Decision)
	assert.Equal(t, "admin@example.com", approved.Decision.DecidedBy)
	assert.Equal(t, "verified", approved.Decision.Notes)

	rule := store.rules["apple store"]
	require.NotNil(t, rule)
	assert.Equal(t, "AAPL", rule.Ticker)
	assert.Equal(t, model.RuleSourceAdmin, rule.Source)

	require.Len(t, sink.events, 1)
	assert.Equal(t, model.EventMappingApproved, sink.events[0].Type)
}

func TestQueue_AdminApprove_NotFound(t *testing.T) {
	q := newTestQueue(newMockStorage(), Config{})

	_, err := q.AdminApprove(context.Background(), "missing", "admin", "")
	assert.ErrorIs(t, err, common.ErrMappingNotFound)
}

func TestQueue_AdminApprove_TerminalEntry(t *testing.T) {
	store := newMockStorage()
	q := newTestQueue(store, Config{})
	ctx := context.Background()

	entry, err := q.Submit(ctx, "tenant-1", "Walmart", "")
	require.NoError(t, err)
	require.Equal(t, model.StatusAutoApplied, entry.Status)

	_, err = q.AdminApprove(ctx, entry.ID, "admin", "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestQueue_AdminApprove_UnresolvedProposal(t *testing.T) {
	store := newMockStorage()
	q := newTestQueue(store, Config{})
	ctx := context.Background()

	entry, err := q.Submit(ctx, "tenant-1", "XJQQ-9844-POS", "")
	require.NoError(t, err)
	require.False(t, entry.Proposal.Resolved())

	_, err = q.AdminApprove(ctx, entry.ID, "admin", "")
	assert.ErrorIs(t, err, common.ErrMissingProposal)
}

func TestQueue_AdminReject(t *testing.T) {
	store := newMockStorage()
	q := newTestQueue(store, Config{})
	ctx := context.Background()

	entry, err := q.Submit(ctx, "tenant-1", "Apple Store", "")
	require.NoError(t, err)

	rejected, err := q.AdminReject(ctx, entry.ID, "admin@example.com", "wrong company")
	require.NoError(t, err)

	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.Equal(t, "wrong company", rejected.Decision.Notes)
	assert.Empty(t, store.rules, "rejection must not create a rule")

	// Terminal: a second decision is refused.
	_, err = q.AdminReject(ctx, entry.ID, "admin@example.com", "again")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestQueue_BackendPreferred(t *testing.T) {
	store := newMockStorage()
	backend := NewMockBackend(model.MerchantMapping{
		Ticker:     "COST",
		Category:   "groceries",
		Confidence: 0.97,
		Method:     model.MethodExact,
		Reasoning:  "backend resolution",
	})
	q := newTestQueue(store, Config{Backend: backend})

	entry, err := q.Submit(context.Background(), "tenant-1", "COSTCO WHSE #0042", "")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.CallCount())
	assert.Equal(t, model.StatusAutoApplied, entry.Status)
	assert.Equal(t, "COST", entry.Proposal.Ticker)
	assert.Equal(t, "COSTCO WHSE #0042", backend.Calls()[0].MerchantRaw)
}

func TestQueue_BackendFailureFallsBack(t *testing.T) {
	store := newMockStorage()
	backend := NewFailingBackend(errors.New("backend down"))
	q := newTestQueue(store, Config{Backend: backend})

	entry, err := q.Submit(context.Background(), "tenant-1", "Walmart", "")
	require.NoError(t, err)

	// Retried, then handed to the built-in tiers.
	assert.Equal(t, 2, backend.CallCount())
	assert.Equal(t, model.StatusAutoApplied, entry.Status)
	assert.Equal(t, "WMT", entry.Proposal.Ticker)
}

func TestQueue_SinkFailureDoesNotFailSubmit(t *testing.T) {
	store := newMockStorage()
	sink := &recordingSink{err: errors.New("sink down")}
	q := newTestQueue(store, Config{Sink: sink})

	entry, err := q.Submit(context.Background(), "tenant-1", "Walmart", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAutoApplied, entry.Status)
}

func TestQueue_GetQueueStatus(t *testing.T) {
	store := newMockStorage()
	q := newTestQueue(store, Config{})
	ctx := context.Background()

	_, err := q.Submit(ctx, "tenant-1", "Walmart", "")
	require.NoError(t, err)
	_, err = q.Submit(ctx, "tenant-1", "Apple Store", "")
	require.NoError(t, err)
	reviewed, err := q.Submit(ctx, "tenant-1", "Netflix.com", "")
	require.NoError(t, err)
	_, err = q.AdminReject(ctx, reviewed.ID, "admin", "not investable")
	require.NoError(t, err)

	summary, err := q.GetQueueStatus(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalEntries)
	assert.Equal(t, 1, summary.AutoApplied)
	assert.Equal(t, 1, summary.PendingReview)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 0, summary.Approved)
}

func TestQueue_GetPendingReviews(t *testing.T) {
	store := newMockStorage()
	q := newTestQueue(store, Config{})
	ctx := context.Background()

	_, err := q.Submit(ctx, "tenant-1", "Walmart", "")
	require.NoError(t, err)
	pending, err := q.Submit(ctx, "tenant-1", "Apple Store", "")
	require.NoError(t, err)

	reviews, err := q.GetPendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, pending.ID, reviews[0].ID)
}

func TestQueue_LearnedRuleShortCircuitsReview(t *testing.T) {
	store := newMockStorage()
	q := newTestQueue(store, Config{})
	ctx := context.Background()

	first, err := q.Submit(ctx, "tenant-1", "Blue Bottle Coffee", "")
	require.NoError(t, err)
	require.Equal(t, model.StatusNeedsReview, first.Status)

	// Admins cannot approve an unresolved proposal, so seed one by hint.
	hinted, err := q.Submit(ctx, "tenant-1", "Blue Bottle Coffee", "SBUX")
	require.NoError(t, err)
	require.True(t, hinted.Proposal.Resolved())

	_, err = q.AdminApprove(ctx, hinted.ID, "admin", "house brand maps to SBUX")
	require.NoError(t, err)

	// The next identical submission resolves through the learned rule.
	repeat, err := q.Submit(ctx, "tenant-1", "Blue Bottle Coffee", "")
	require.NoError(t, err)
	assert.Equal(t, "SBUX", repeat.Proposal.Ticker)
	assert.Equal(t, model.MethodExact, repeat.Proposal.Method)
}
