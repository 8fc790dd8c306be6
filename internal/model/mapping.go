// Package model defines the core domain models used throughout the application.
package model

// ResolutionMethod indicates which resolver tier produced a mapping.
type ResolutionMethod string

// Resolution method constants.
const (
	MethodExact    ResolutionMethod = "exact"
	MethodFuzzy    ResolutionMethod = "fuzzy"
	MethodCategory ResolutionMethod = "category"
	MethodUserHint ResolutionMethod = "user_hint"
	MethodNone     ResolutionMethod = "none"
)

// MerchantMapping is the result of resolving a raw merchant string to a
// tradable ticker symbol. An unresolved merchant is represented by an empty
// Ticker and zero Confidence, never by an error.
type MerchantMapping struct {
	Ticker      string
	Category    string
	Reasoning   string
	Method      ResolutionMethod
	Confidence  float64
	NeedsReview bool
}

// Resolved reports whether the mapping carries a ticker.
func (m MerchantMapping) Resolved() bool {
	return m.Ticker != ""
}
