// Package queue implements the mapping review queue: a per-submission state
// machine that resolves raw merchant strings and gates low-confidence results
// behind admin review.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/spareflow/spareflow/internal/common"
	"github.com/spareflow/spareflow/internal/model"
	"github.com/spareflow/spareflow/internal/resolver"
	"github.com/spareflow/spareflow/internal/service"
)

// systemDecider is the decider identity recorded on auto-applied entries.
const systemDecider = "system"

// Queue orchestrates merchant mapping submissions. Resolution runs
// synchronously inside Submit; admin decisions arrive later through
// AdminApprove and AdminReject.
type Queue struct {
	storage  service.Storage
	fallback *resolver.Resolver
	backend  resolver.Backend
	sink     service.EventSink
	retry    service.RetryOptions
}

// Config holds optional collaborators for the queue.
type Config struct {
	// Backend is the advanced resolution capability. When nil, or when it
	// fails, the built-in tiered resolver handles the submission.
	Backend resolver.Backend
	// Sink receives best-effort notification events. May be nil.
	Sink      service.EventSink
	RetryOpts service.RetryOptions
}

// New creates a mapping queue backed only by the built-in resolver.
func New(storage service.Storage, fallback *resolver.Resolver) *Queue {
	return NewWithConfig(storage, fallback, Config{})
}

// NewWithConfig creates a mapping queue with optional backend and event sink.
// Backend selection happens here, once, not per call.
func NewWithConfig(storage service.Storage, fallback *resolver.Resolver, cfg Config) *Queue {
	retry := cfg.RetryOpts
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 2
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 250 * time.Millisecond
	}

	return &Queue{
		storage:  storage,
		fallback: fallback,
		backend:  cfg.Backend,
		sink:     cfg.Sink,
		retry:    retry,
	}
}

// Submit creates a queue entry for the raw merchant string and synchronously
// triggers resolution. Duplicate submissions of the same string create
// independent entries; convergence happens through the shared rule store.
func (q *Queue) Submit(ctx context.Context, tenantID, merchantRaw, tickerHint string) (*model.QueueEntry, error) {
	now := time.Now()
	entry := &model.QueueEntry{
		ID:          ulid.Make().String(),
		TenantID:    tenantID,
		MerchantRaw: merchantRaw,
		TickerHint:  tickerHint,
		Status:      model.StatusSubmittedUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := q.storage.SaveQueueEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save queue entry: %w", err)
	}

	if err := q.triggerResolution(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// triggerResolution invokes the resolver and advances the entry to
// auto_applied or needs_review. Confidence below the review threshold still
// lands in needs_review: nothing is silently discarded.
func (q *Queue) triggerResolution(ctx context.Context, entry *model.QueueEntry) error {
	mapping := q.resolve(ctx, entry)

	entry.Proposal = &mapping
	entry.Status = model.StatusProposedByLLM
	entry.UpdatedAt = time.Now()
	if err := q.storage.SaveQueueEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to save proposal: %w", err)
	}

	if mapping.Confidence >= model.AutoApplyThreshold {
		return q.autoApply(ctx, entry)
	}

	entry.Status = model.StatusNeedsReview
	entry.UpdatedAt = time.Now()
	if err := q.storage.SaveQueueEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to save review entry: %w", err)
	}

	slog.Info("Mapping flagged for review",
		"entry_id", entry.ID,
		"merchant", entry.MerchantRaw,
		"ticker", mapping.Ticker,
		"confidence", mapping.Confidence)

	return nil
}

// resolve tries the configured backend first and falls back to the built-in
// tiered resolver on any failure. It never returns an error; a submission is
// never failed by an unavailable backend.
func (q *Queue) resolve(ctx context.Context, entry *model.QueueEntry) model.MerchantMapping {
	req := resolver.Request{
		MerchantRaw: entry.MerchantRaw,
		TickerHint:  entry.TickerHint,
	}

	if q.backend != nil {
		var mapping model.MerchantMapping
		err := common.WithRetry(ctx, func() error {
			var resolveErr error
			mapping, resolveErr = q.backend.Resolve(ctx, req)
			if resolveErr != nil {
				return &common.RetryableError{Err: resolveErr, Retryable: true}
			}
			return nil
		}, q.retry)
		if err == nil {
			return mapping
		}

		slog.Warn("Resolver backend unavailable, falling back to rule tiers",
			"entry_id", entry.ID,
			"merchant", entry.MerchantRaw,
			"error", err)
	}

	mapping, err := q.fallback.Resolve(ctx, req)
	if err != nil {
		// The built-in resolver does not fail; treat a failure as no match.
		slog.Error("Built-in resolver failed", "entry_id", entry.ID, "error", err)
		return model.MerchantMapping{
			Category:    "Unknown",
			Method:      model.MethodNone,
			Reasoning:   "resolution failed; manual review required",
			NeedsReview: true,
		}
	}
	return mapping
}

// autoApply finalizes a high-confidence entry and promotes its proposal into
// the rule store.
func (q *Queue) autoApply(ctx context.Context, entry *model.QueueEntry) error {
	now := time.Now()
	entry.Status = model.StatusAutoApplied
	entry.Decision = &model.AdminDecision{
		DecidedBy: systemDecider,
		DecidedAt: now,
		Notes:     fmt.Sprintf("auto-applied at confidence %.2f", entry.Proposal.Confidence),
	}
	entry.UpdatedAt = now

	if err := q.storage.SaveQueueEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to save auto-applied entry: %w", err)
	}

	if err := q.promoteRule(ctx, entry, model.RuleSourceSystem); err != nil {
		slog.Warn("Failed to promote rule from auto-applied entry",
			"entry_id", entry.ID,
			"error", err)
	}

	slog.Info("Mapping auto-applied",
		"entry_id", entry.ID,
		"merchant", entry.MerchantRaw,
		"ticker", entry.Proposal.Ticker,
		"confidence", entry.Proposal.Confidence)

	q.publish(ctx, model.EventMappingAutoApplied, entry)
	return nil
}

// AdminApprove records an admin approval for an entry awaiting review and
// promotes its proposal into the rule store.
func (q *Queue) AdminApprove(ctx context.Context, entryID, adminID, notes string) (*model.QueueEntry, error) {
	entry, err := q.storage.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue entry: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrMappingNotFound, entryID)
	}
	if !entry.Status.CanTransition(model.StatusApproved) {
		return nil, fmt.Errorf("%w: cannot approve entry in status %s", common.ErrInvalidTransition, entry.Status)
	}
	if entry.Proposal == nil || !entry.Proposal.Resolved() {
		return nil, fmt.Errorf("%w: entry %s", common.ErrMissingProposal, entryID)
	}

	now := time.Now()
	entry.Status = model.StatusApproved
	entry.Decision = &model.AdminDecision{
		DecidedBy: adminID,
		DecidedAt: now,
		Notes:     notes,
	}
	entry.UpdatedAt = now

	if err := q.storage.SaveQueueEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save approved entry: %w", err)
	}

	if err := q.promoteRule(ctx, entry, model.RuleSourceAdmin); err != nil {
		slog.Warn("Failed to promote rule from approved entry",
			"entry_id", entry.ID,
			"error", err)
	}

	slog.Info("Mapping approved",
		"entry_id", entry.ID,
		"merchant", entry.MerchantRaw,
		"ticker", entry.Proposal.Ticker,
		"admin", adminID)

	q.publish(ctx, model.EventMappingApproved, entry)
	return entry, nil
}

// AdminReject records an admin rejection. No rule is created.
func (q *Queue) AdminReject(ctx context.Context, entryID, adminID, reason string) (*model.QueueEntry, error) {
	entry, err := q.storage.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue entry: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrMappingNotFound, entryID)
	}
	if !entry.Status.CanTransition(model.StatusRejected) {
		return nil, fmt.Errorf("%w: cannot reject entry in status %s", common.ErrInvalidTransition, entry.Status)
	}

	now := time.Now()
	entry.Status = model.StatusRejected
	entry.Decision = &model.AdminDecision{
		DecidedBy: adminID,
		DecidedAt: now,
		Notes:     reason,
	}
	entry.UpdatedAt = now

	if err := q.storage.SaveQueueEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save rejected entry: %w", err)
	}

	slog.Info("Mapping rejected",
		"entry_id", entry.ID,
		"merchant", entry.MerchantRaw,
		"admin", adminID,
		"reason", reason)

	return entry, nil
}

// GetQueueStatus summarizes the queue for an external dashboard.
func (q *Queue) GetQueueStatus(ctx context.Context) (service.QueueStatusSummary, error) {
	counts, err := q.storage.CountQueueEntriesByStatus(ctx)
	if err != nil {
		return service.QueueStatusSummary{}, fmt.Errorf("failed to count queue entries: %w", err)
	}

	summary := service.QueueStatusSummary{
		ByStatus:      counts,
		PendingReview: counts[model.StatusNeedsReview],
		AutoApplied:   counts[model.StatusAutoApplied],
		Approved:      counts[model.StatusApproved],
		Rejected:      counts[model.StatusRejected],
	}
	for _, n := range counts {
		summary.TotalEntries += n
	}
	return summary, nil
}

// GetPendingReviews returns entries awaiting an admin decision, oldest first.
func (q *Queue) GetPendingReviews(ctx context.Context) ([]model.QueueEntry, error) {
	entries, err := q.storage.GetQueueEntriesByStatus(ctx, model.StatusNeedsReview)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending reviews: %w", err)
	}
	return entries, nil
}

// promoteRule creates (or re-confirms) a resolver rule from the entry's
// proposal. Exactly one rule exists per confirmed pattern.
func (q *Queue) promoteRule(ctx context.Context, entry *model.QueueEntry, source model.RuleSource) error {
	rule := &model.ResolverRule{
		Pattern:    resolver.Normalize(entry.MerchantRaw),
		Ticker:     entry.Proposal.Ticker,
		Category:   entry.Proposal.Category,
		Confidence: entry.Proposal.Confidence,
		Source:     source,
		CreatedAt:  time.Now(),
	}
	return q.storage.SaveRule(ctx, rule)
}

// publish sends a best-effort event. A nil or failing sink never fails the
// calling operation.
func (q *Queue) publish(ctx context.Context, eventType model.EventType, entry *model.QueueEntry) {
	if q.sink == nil {
		return
	}

	event := model.Event{
		Type:       eventType,
		OccurredAt: time.Now(),
		Payload: map[string]any{
			"entry_id":   entry.ID,
			"merchant":   entry.MerchantRaw,
			"ticker":     entry.Proposal.Ticker,
			"confidence": entry.Proposal.Confidence,
		},
	}

	if err := q.sink.Publish(ctx, event); err != nil {
		slog.Warn("Event sink publish failed",
			"event_type", eventType,
			"entry_id", entry.ID,
			"error", err)
	}
}
