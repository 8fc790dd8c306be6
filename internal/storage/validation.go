package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spareflow/spareflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidEntry    = errors.New("invalid queue entry")
	ErrInvalidRule     = errors.New("invalid resolver rule")
	ErrInvalidRoundUp  = errors.New("invalid round-up entry")
	ErrInvalidPref     = errors.New("invalid preference")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrRuleNotFound    = errors.New("resolver rule not found")
	ErrEntryNotFound   = errors.New("queue entry not found")
	ErrRoundUpNotFound = errors.New("round-up entry not found")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateQueueEntry validates a queue entry before persisting.
func validateQueueEntry(entry *model.QueueEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidEntry)
	}
	if entry.MerchantRaw == "" {
		return fmt.Errorf("%w: missing merchant string", ErrInvalidEntry)
	}
	switch entry.Status {
	case model.StatusSubmittedUser, model.StatusProposedByLLM, model.StatusAutoApplied,
		model.StatusNeedsReview, model.StatusApproved, model.StatusRejected:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, entry.Status)
	}
	return nil
}

// validateRule validates a resolver rule before persisting.
func validateRule(rule *model.ResolverRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.Pattern == "" {
		return fmt.Errorf("%w: missing pattern", ErrInvalidRule)
	}
	if rule.Ticker == "" {
		return fmt.Errorf("%w: missing ticker", ErrInvalidRule)
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of range", ErrInvalidRule, rule.Confidence)
	}
	return nil
}

// validateRoundUpEntry validates a round-up ledger entry before persisting.
func validateRoundUpEntry(entry *model.RoundUpLedgerEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRoundUp)
	}
	if entry.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidRoundUp)
	}
	if entry.Delta.IsNegative() {
		return fmt.Errorf("%w: negative delta", ErrInvalidRoundUp)
	}
	switch entry.Status {
	case model.RoundUpPending, model.RoundUpSwept:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, entry.Status)
	}
	return nil
}

// validatePreference validates a round-up preference before persisting.
func validatePreference(pref *model.UserRoundUpPreference) error {
	if pref == nil {
		return fmt.Errorf("%w: preference", ErrNilParameter)
	}
	if pref.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidPref)
	}
	if pref.FixedAmount.IsNegative() {
		return fmt.Errorf("%w: negative fixed amount", ErrInvalidPref)
	}
	return nil
}
