package model

// Canonical confidence thresholds. The queue's auto-apply cutoff is the single
// authoritative "approved" boundary; the same pair drives both the
// confidence-to-status derivation and the Mapping Queue's transitions.
const (
	// AutoApplyThreshold is the minimum confidence for applying a resolution
	// without human review.
	AutoApplyThreshold = 0.92
	// ReviewThreshold is the minimum confidence for a resolution to be
	// considered a plausible candidate rather than a guess.
	ReviewThreshold = 0.70
)

// ResolutionStatus categorizes a resolver confidence for callers that only
// need a coarse verdict.
type ResolutionStatus string

// Resolution status constants.
const (
	ResolutionApproved  ResolutionStatus = "approved"
	ResolutionReview    ResolutionStatus = "review_required"
	ResolutionUncertain ResolutionStatus = "uncertain"
	ResolutionRejected  ResolutionStatus = "rejected"
)

// StatusForConfidence derives the coarse resolution status for a confidence
// value using the canonical thresholds.
func StatusForConfidence(confidence float64) ResolutionStatus {
	switch {
	case confidence >= AutoApplyThreshold:
		return ResolutionApproved
	case confidence >= ReviewThreshold:
		return ResolutionReview
	case confidence > 0:
		return ResolutionUncertain
	default:
		return ResolutionRejected
	}
}
