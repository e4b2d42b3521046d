package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Recurring templates
// ============================================================

// Frequency is the cadence of a recurring template.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is one of the supported cadences.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// RecurringTemplate generates transactions on a cadence (rent, subscriptions...).
// LastMaterialized is written only by the recurring engine.
type RecurringTemplate struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Category         string          `json:"category"`
	Merchant         string          `json:"merchant"`
	Mood             Mood            `json:"mood"`
	Note             string          `json:"note"`
	Tags             []string        `json:"tags"`
	Frequency        Frequency       `json:"frequency"`
	StartDate        time.Time       `json:"start_date"`
	LastMaterialized *time.Time      `json:"last_materialized,omitempty"`
}

// RecurringTemplateRequest is the user-editable part of a template.
type RecurringTemplateRequest struct {
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Merchant  string          `json:"merchant"`
	Mood      Mood            `json:"mood"`
	Note      string          `json:"note"`
	Tags      []string        `json:"tags"`
	Frequency Frequency       `json:"frequency"`
	StartDate time.Time       `json:"start_date"`
}

// Validate checks the template payload.
func (r *RecurringTemplateRequest) Validate() error {
	if r.Title == "" {
		return &ErrValidation{Field: "title", Message: "required"}
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
	if !r.Frequency.Valid() {
		return &ErrValidation{Field: "frequency", Message: "must be daily, weekly or monthly"}
	}
	if r.StartDate.IsZero() {
		return &ErrValidation{Field: "start_date", Message: "required"}
	}
	return nil
}
