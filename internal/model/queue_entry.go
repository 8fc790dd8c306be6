package model

import "time"

// QueueStatus is the lifecycle state of a mapping submission.
type QueueStatus string

// Queue status constants. An entry reaching StatusAutoApplied, StatusApproved
// or StatusRejected is terminal.
const (
	StatusSubmittedUser QueueStatus = "submitted_user"
	StatusProposedByLLM QueueStatus = "proposed_by_llm"
	StatusAutoApplied   QueueStatus = "auto_applied"
	StatusNeedsReview   QueueStatus = "needs_review"
	StatusApproved      QueueStatus = "approved"
	StatusRejected      QueueStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s QueueStatus) Terminal() bool {
	switch s {
	case StatusAutoApplied, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// validTransitions encodes the only permitted status transitions.
var validTransitions = map[QueueStatus][]QueueStatus{
	StatusSubmittedUser: {StatusProposedByLLM},
	StatusProposedByLLM: {StatusAutoApplied, StatusNeedsReview},
	StatusNeedsReview:   {StatusApproved, StatusRejected},
}

// CanTransition reports whether moving from s to next is permitted.
func (s QueueStatus) CanTransition(next QueueStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AdminDecision records who decided a reviewed entry and why.
type AdminDecision struct {
	DecidedAt time.Time
	DecidedBy string
	Notes     string
}

// QueueEntry is a single mapping submission moving through the review
// state machine. Entries are mutated in place and never deleted.
type QueueEntry struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ID          string
	TenantID    string
	MerchantRaw string
	TickerHint  string
	Status      QueueStatus
	Proposal    *MerchantMapping
	Decision    *AdminDecision
}
