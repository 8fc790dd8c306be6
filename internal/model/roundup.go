package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundUpStatus is the lifecycle state of a round-up ledger entry. The only
// transition is pending to swept, and it happens as part of a batch sweep.
type RoundUpStatus string

// Round-up status constants.
const (
	RoundUpPending RoundUpStatus = "pending"
	RoundUpSwept   RoundUpStatus = "swept"
)

// RoundUpLedgerEntry records the round-up contribution accrued for one
// transaction. SweepBatchID and SweptAt are set together, only when the entry
// moves from pending to swept.
type RoundUpLedgerEntry struct {
	CreatedAt      time.Time
	SweptAt        *time.Time
	ID             string
	UserID         string
	TransactionID  string
	SweepBatchID   string
	Status         RoundUpStatus
	OriginalAmount decimal.Decimal
	Delta          decimal.Decimal
	Fee            decimal.Decimal
	TotalDebit     decimal.Decimal
}

// UserRoundUpPreference holds a user's fixed round-up amount. The delta applied
// to each debit is this amount exactly; it is not a round-to-next-dollar
// computation.
type UserRoundUpPreference struct {
	UpdatedAt   time.Time
	UserID      string
	FixedAmount decimal.Decimal
	Enabled     bool
}

// DefaultRoundUpAmount is the fixed round-up applied when a user has not
// configured one explicitly.
var DefaultRoundUpAmount = decimal.NewFromFloat(1.00)
