package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions
// ============================================================

// Mood is the ordinal emotional-state rating attached to a purchase.
type Mood int

const (
	MoodMin Mood = 1
	MoodMax Mood = 5
)

// Valid reports whether the mood lies on the 1..5 scale.
func (m Mood) Valid() bool {
	return m >= MoodMin && m <= MoodMax
}

// Transaction is an immutable financial event in the ledger.
type Transaction struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Merchant    string          `json:"merchant"`
	Mood        Mood            `json:"mood"`
	Note        string          `json:"note"`
	Tags        []string        `json:"tags"`
	RecurringID string          `json:"recurring_id,omitempty"` // template that produced it, if any
}

// TransactionRequest is the user-supplied payload for creating or editing a transaction.
type TransactionRequest struct {
	Timestamp time.Time       `json:"timestamp"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Merchant  string          `json:"merchant"`
	Mood      Mood            `json:"mood"`
	Note      string          `json:"note"`
	Tags      []string        `json:"tags"`
}

// Validate checks the request against the ledger's invariants.
func (r *TransactionRequest) Validate() error {
	if r.Timestamp.IsZero() {
		return &ErrValidation{Field: "timestamp", Message: "required"}
	}
	if r.Amount.IsNegative() {
		return &ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if r.Category == "" {
		return &ErrValidation{Field: "category", Message: "required"}
	}
	if !r.Mood.Valid() {
		return &ErrValidation{Field: "mood", Message: "must be between 1 and 5"}
	}
	return nil
}

// BulkDeleteRequest lists transaction IDs removed in a single user action.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}
