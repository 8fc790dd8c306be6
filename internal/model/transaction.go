package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single financial transaction handed to the core by
// the surrounding platform. Only the fields below are read; ingestion and
// persistence of the full record belong to the caller.
type Transaction struct {
	Date         time.Time
	ID           string
	UserID       string
	MerchantName string // Raw merchant descriptor
	AccountID    string
	Type         string // Source transaction type (e.g., DEBIT, CHECK, ATM)
	Hash         string
	Amount       decimal.Decimal // Positive for debits
}

// IsDebit reports whether the transaction is a debit eligible for a round-up.
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsPositive()
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.MerchantName,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
