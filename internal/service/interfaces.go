// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spareflow/spareflow/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Mapping queue operations
	SaveQueueEntry(ctx context.Context, entry *model.QueueEntry) error
	GetQueueEntry(ctx context.Context, id string) (*model.QueueEntry, error)
	GetQueueEntriesByStatus(ctx context.Context, status model.QueueStatus) ([]model.QueueEntry, error)
	CountQueueEntriesByStatus(ctx context.Context) (map[model.QueueStatus]int, error)

	// Resolver rule operations
	GetRule(ctx context.Context, pattern string) (*model.ResolverRule, error)
	SaveRule(ctx context.Context, rule *model.ResolverRule) error
	GetAllRules(ctx context.Context) ([]model.ResolverRule, error)
	IncrementRuleUseCount(ctx context.Context, pattern string) error

	// Round-up ledger operations
	SaveRoundUpEntry(ctx context.Context, entry *model.RoundUpLedgerEntry) error
	GetPendingRoundUps(ctx context.Context, userID string) ([]model.RoundUpLedgerEntry, error)
	GetRoundUpsByUser(ctx context.Context, userID string) ([]model.RoundUpLedgerEntry, error)
	GetAllRoundUps(ctx context.Context) ([]model.RoundUpLedgerEntry, error)
	// SweepPending atomically flips every pending entry for the user to swept
	// with the given batch id and timestamp, returning the swept entries. A
	// concurrent reader never observes a partially-swept set.
	SweepPending(ctx context.Context, userID, batchID string, sweptAt time.Time) ([]model.RoundUpLedgerEntry, error)

	// Preference operations
	GetPreference(ctx context.Context, userID string) (*model.UserRoundUpPreference, error)
	SavePreference(ctx context.Context, pref *model.UserRoundUpPreference) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// EventSink receives best-effort notifications for an external event
// distribution collaborator. Implementations must be safe for concurrent use.
type EventSink interface {
	Publish(ctx context.Context, event model.Event) error
}

// QueueStatusSummary aggregates the mapping queue for an external dashboard.
type QueueStatusSummary struct {
	ByStatus      map[model.QueueStatus]int
	TotalEntries  int
	PendingReview int
	AutoApplied   int
	Approved      int
	Rejected      int
}

// UserRoundUpStats aggregates one user's round-up ledger.
type UserRoundUpStats struct {
	UserID        string
	TotalRoundUps decimal.Decimal
	TotalFees     decimal.Decimal
	PendingAmount decimal.Decimal
	SweptAmount   decimal.Decimal
	EntryCount    int
	PendingCount  int
	SweptCount    int
}

// AdminRoundUpStats aggregates the round-up ledger across all users.
type AdminRoundUpStats struct {
	ByUser        map[string]UserRoundUpStats
	TotalRoundUps decimal.Decimal
	TotalFees     decimal.Decimal
	PendingAmount decimal.Decimal
	SweptAmount   decimal.Decimal
	EntryCount    int
	UserCount     int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
