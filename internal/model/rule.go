package model

import "time"

// RuleSource indicates how a resolver rule was created.
type RuleSource string

const (
	// RuleSourceSystem indicates the rule was created by an auto-applied resolution.
	RuleSourceSystem RuleSource = "SYSTEM"
	// RuleSourceAdmin indicates the rule was created by an admin approval.
	RuleSourceAdmin RuleSource = "ADMIN"
)

// ResolverRule is a durable pattern-to-ticker fact learned from a confirmed
// resolution. Rules are consulted by the resolver's rule tier and grow
// monotonically; there is no eviction.
type ResolverRule struct {
	CreatedAt  time.Time
	Pattern    string
	Ticker     string
	Category   string
	Source     RuleSource
	Confidence float64
	UseCount   int
}
