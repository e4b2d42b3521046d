package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Challenges
// ============================================================

// ChallengeType selects the evaluation rule of a challenge definition.
type ChallengeType string

const (
	ChallengeNoSpend    ChallengeType = "no-spend-in-category-set"
	ChallengeSpendLimit ChallengeType = "spend-limit-in-category-set"
)

// Challenge is a read-only catalog definition of a behavioural goal.
type Challenge struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Type         ChallengeType   `json:"type"`
	DurationDays int             `json:"duration_days"`
	Target       decimal.Decimal `json:"target"` // spend ceiling; ignored for no-spend
	Categories   string          `json:"categories"`
	BadgeID      string          `json:"badge_id"`
}

// CategorySet splits the semicolon-delimited category list.
func (c *Challenge) CategorySet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, name := range strings.Split(c.Categories, ";") {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// Window returns the inclusive evaluation window for an attempt started at start.
func (c *Challenge) Window(start time.Time) (time.Time, time.Time) {
	return start, start.Add(time.Duration(c.DurationDays) * 24 * time.Hour)
}

// ChallengeStatus is the state of a user's attempt.
type ChallengeStatus string

const (
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeFailed    ChallengeStatus = "failed"
)

// UserChallenge is a single attempt at a catalog challenge. Never deleted.
type UserChallenge struct {
	ID          string          `json:"id"`
	ChallengeID string          `json:"challenge_id"`
	StartDate   time.Time       `json:"start_date"`
	Status      ChallengeStatus `json:"status"`
	Progress    decimal.Decimal `json:"progress"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
}

// Terminal reports whether the attempt has left the active state.
func (uc *UserChallenge) Terminal() bool {
	return uc.Status == ChallengeCompleted || uc.Status == ChallengeFailed
}

// UserChallengeView pairs an attempt with its definition for the achievements view.
type UserChallengeView struct {
	UserChallenge
	Challenge *Challenge `json:"challenge,omitempty"`
}
