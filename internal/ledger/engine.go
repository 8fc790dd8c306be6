// Package ledger implements the round-up ledger engine: fixed-amount
// round-up accrual per debit and atomic per-user sweeps into investable
// batches.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/spareflow/spareflow/internal/model"
	"github.com/spareflow/spareflow/internal/service"
)

// DefaultSweepThreshold is the pending total at which an automatic sweep
// triggers.
var DefaultSweepThreshold = decimal.NewFromFloat(10.00)

// Engine accrues round-up contributions and sweeps them into batches. All
// public operations are safe for concurrent use; the append, threshold check
// and sweep for one user run under a per-user critical section so two
// concurrent calls cannot double-sweep an entry.
type Engine struct {
	storage        service.Storage
	sink           service.EventSink
	userLocks      map[string]*sync.Mutex
	sweepThreshold decimal.Decimal
	mu             sync.Mutex
}

// Config holds optional collaborators and tuning for the engine.
type Config struct {
	// Sink receives best-effort notification events. May be nil.
	Sink service.EventSink
	// SweepThreshold overrides DefaultSweepThreshold when positive.
	SweepThreshold decimal.Decimal
}

// New creates a ledger engine with default configuration.
func New(storage service.Storage) *Engine {
	return NewWithConfig(storage, Config{})
}

// NewWithConfig creates a ledger engine with custom configuration.
func NewWithConfig(storage service.Storage, cfg Config) *Engine {
	threshold := cfg.SweepThreshold
	if !threshold.IsPositive() {
		threshold = DefaultSweepThreshold
	}

	return &Engine{
		storage:        storage,
		sink:           cfg.Sink,
		sweepThreshold: threshold,
		userLocks:      make(map[string]*sync.Mutex),
	}
}

// ProcessResult reports the outcome of processing one transaction.
type ProcessResult struct {
	// Sweep is non-nil when the pending total crossed the sweep threshold
	// and an automatic sweep ran before returning.
	Sweep      *SweepResult
	Entry      model.RoundUpLedgerEntry
	TotalDebit decimal.Decimal
}

// SweepResult reports the outcome of a sweep attempt.
type SweepResult struct {
	SweptAt      time.Time
	SweepBatchID string
	Reason       string
	TotalSwept   decimal.Decimal
	EntriesSwept int
	Swept        bool
}

// SetPreference replaces the user's round-up preference with the given fixed
// amount, enabled.
func (e *Engine) SetPreference(ctx context.Context, userID string, fixedAmount decimal.Decimal) error {
	pref := &model.UserRoundUpPreference{
		UserID:      userID,
		FixedAmount: fixedAmount,
		Enabled:     true,
		UpdatedAt:   time.Now(),
	}
	if err := e.storage.SavePreference(ctx, pref); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// SetEnabled flips the enabled flag on the user's preference, creating a
// default preference first if none exists.
func (e *Engine) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	pref, err := e.storage.GetPreference(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load preference: %w", err)
	}
	if pref == nil {
		pref = &model.UserRoundUpPreference{
			UserID:      userID,
			FixedAmount: model.DefaultRoundUpAmount,
		}
	}

	pref.Enabled = enabled
	pref.UpdatedAt = time.Now()
	if err := e.storage.SavePreference(ctx, pref); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// ProcessTransaction computes the round-up for one transaction, appends a
// pending ledger entry and, when the user's pending total reaches the sweep
// threshold, sweeps before returning. Non-debits and disabled or absent
// preferences accrue a zero delta but still produce an entry.
func (e *Engine) ProcessTransaction(ctx context.Context, txn model.Transaction) (ProcessResult, error) {
	lock := e.userLock(txn.UserID)
	lock.Lock()
	defer lock.Unlock()

	pref, err := e.storage.GetPreference(ctx, txn.UserID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to load preference: %w", err)
	}

	delta := decimal.Zero
	if txn.IsDebit() && pref != nil && pref.Enabled {
		delta = pref.FixedAmount
	}
	fee := decimal.Zero // Reserved for future fee models.
	totalDebit := txn.Amount.Add(delta).Add(fee)

	entry := model.RoundUpLedgerEntry{
		ID:             ulid.Make().String(),
		UserID:         txn.UserID,
		TransactionID:  txn.ID,
		OriginalAmount: txn.Amount,
		Delta:          delta,
		Fee:            fee,
		TotalDebit:     totalDebit,
		Status:         model.RoundUpPending,
		CreatedAt:      time.Now(),
	}

	if err := e.storage.SaveRoundUpEntry(ctx, &entry); err != nil {
		return ProcessResult{}, fmt.Errorf("failed to save ledger entry: %w", err)
	}

	result := ProcessResult{Entry: entry, TotalDebit: totalDebit}

	if delta.IsPositive() {
		e.publish(ctx, model.EventRoundUpAccrued, map[string]any{
			"entry_id":       entry.ID,
			"user_id":        entry.UserID,
			"transaction_id": entry.TransactionID,
			"delta":          delta.StringFixed(2),
		})

		pending, err := e.pendingTotal(ctx, txn.UserID)
		if err != nil {
			return ProcessResult{}, err
		}
		if pending.GreaterThanOrEqual(e.sweepThreshold) {
			sweep, err := e.sweepLocked(ctx, txn.UserID)
			if err != nil {
				return ProcessResult{}, err
			}
			result.Sweep = &sweep
		}
	}

	return result, nil
}

// GetPendingTotal returns the sum of delta over the user's pending entries,
// rounded to two decimal places.
func (e *Engine) GetPendingTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	total, err := e.pendingTotal(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

func (e *Engine) pendingTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	entries, err := e.storage.GetPendingRoundUps(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load pending entries: %w", err)
	}

	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Delta)
	}
	return total, nil
}

// AutoSweep sweeps all of the user's pending entries into one batch. Sweeping
// an empty ledger is not an error.
func (e *Engine) AutoSweep(ctx context.Context, userID string) (SweepResult, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return e.sweepLocked(ctx, userID)
}

// ManualSweep behaves exactly like AutoSweep, exposed as an explicit
// operation for an external trigger.
func (e *Engine) ManualSweep(ctx context.Context, userID string) (SweepResult, error) {
	return e.AutoSweep(ctx, userID)
}

// sweepLocked performs the atomic sweep. The caller must hold the user lock.
func (e *Engine) sweepLocked(ctx context.Context, userID string) (SweepResult, error) {
	batchID := "sweep-" + ulid.Make().String()
	sweptAt := time.Now()

	entries, err := e.storage.SweepPending(ctx, userID, batchID, sweptAt)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to sweep pending entries: %w", err)
	}
	if len(entries) == 0 {
		return SweepResult{
			Swept:  false,
			Reason: "no pending round-up entries",
		}, nil
	}

	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Delta)
	}
	total = total.Round(2)

	slog.Info("Round-up sweep complete",
		"user_id", userID,
		"sweep_batch_id", batchID,
		"entries_swept", len(entries),
		"total_swept", total.StringFixed(2))

	e.publish(ctx, model.EventRoundUpSwept, map[string]any{
		"user_id":        userID,
		"sweep_batch_id": batchID,
		"entries_swept":  len(entries),
		"total_swept":    total.StringFixed(2),
	})

	return SweepResult{
		Swept:        true,
		SweepBatchID: batchID,
		SweptAt:      sweptAt,
		EntriesSwept: len(entries),
		TotalSwept:   total,
	}, nil
}

// GetUserStats aggregates one user's round-up ledger.
func (e *Engine) GetUserStats(ctx context.Context, userID string) (service.UserRoundUpStats, error) {
	entries, err := e.storage.GetRoundUpsByUser(ctx, userID)
	if err != nil {
		return service.UserRoundUpStats{}, fmt.Errorf("failed to load ledger entries: %w", err)
	}
	return aggregateUser(userID, entries), nil
}

// GetAdminStats aggregates the round-up ledger across all users with a
// per-user breakdown.
func (e *Engine) GetAdminStats(ctx context.Context) (service.AdminRoundUpStats, error) {
	entries, err := e.storage.GetAllRoundUps(ctx)
	if err != nil {
		return service.AdminRoundUpStats{}, fmt.Errorf("failed to load ledger entries: %w", err)
	}

	byUser := make(map[string][]model.RoundUpLedgerEntry)
	for _, entry := range entries {
		byUser[entry.UserID] = append(byUser[entry.UserID], entry)
	}

	stats := service.AdminRoundUpStats{
		ByUser:        make(map[string]service.UserRoundUpStats, len(byUser)),
		TotalRoundUps: decimal.Zero,
		TotalFees:     decimal.Zero,
		PendingAmount: decimal.Zero,
		SweptAmount:   decimal.Zero,
	}
	for userID, userEntries := range byUser {
		userStats := aggregateUser(userID, userEntries)
		stats.ByUser[userID] = userStats
		stats.TotalRoundUps = stats.TotalRoundUps.Add(userStats.TotalRoundUps)
		stats.TotalFees = stats.TotalFees.Add(userStats.TotalFees)
		stats.PendingAmount = stats.PendingAmount.Add(userStats.PendingAmount)
		stats.SweptAmount = stats.SweptAmount.Add(userStats.SweptAmount)
		stats.EntryCount += userStats.EntryCount
	}
	stats.UserCount = len(byUser)

	return stats, nil
}

func aggregateUser(userID string, entries []model.RoundUpLedgerEntry) service.UserRoundUpStats {
	stats := service.UserRoundUpStats{
		UserID:        userID,
		TotalRoundUps: decimal.Zero,
		TotalFees:     decimal.Zero,
		PendingAmount: decimal.Zero,
		SweptAmount:   decimal.Zero,
	}

	for _, entry := range entries {
		stats.EntryCount++
		stats.TotalRoundUps = stats.TotalRoundUps.Add(entry.Delta)
		stats.TotalFees = stats.TotalFees.Add(entry.Fee)
		switch entry.Status {
		case model.RoundUpPending:
			stats.PendingCount++
			stats.PendingAmount = stats.PendingAmount.Add(entry.Delta)
		case model.RoundUpSwept:
			stats.SweptCount++
			stats.SweptAmount = stats.SweptAmount.Add(entry.Delta)
		}
	}

	stats.TotalRoundUps = stats.TotalRoundUps.Round(2)
	stats.TotalFees = stats.TotalFees.Round(2)
	stats.PendingAmount = stats.PendingAmount.Round(2)
	stats.SweptAmount = stats.SweptAmount.Round(2)
	return stats
}

// userLock returns the mutex guarding one user's ledger operations.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}

// publish sends a best-effort event. A nil or failing sink never fails the
// calling operation.
func (e *Engine) publish(ctx context.Context, eventType model.EventType, payload map[string]any) {
	if e.sink == nil {
		return
	}

	event := model.Event{
		Type:       eventType,
		OccurredAt: time.Now(),
		Payload:    payload,
	}
	if err := e.sink.Publish(ctx, event); err != nil {
		slog.Warn("Event sink publish failed",
			"event_type", eventType,
			"error", err)
	}
}
