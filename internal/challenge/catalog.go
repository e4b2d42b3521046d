package challenge

import (
	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultCatalog is the built-in set of challenges seeded into storage.
func DefaultCatalog() []domain.Challenge {
	return []domain.Challenge{
		{
			ID:           "no-spend-weekend",
			Title:        "No-Spend Weekend",
			Description:  "Skip shopping and entertainment purchases for two days.",
			Type:         domain.ChallengeNoSpend,
			DurationDays: 2,
			Categories:   "Shopping;Entertainment",
			BadgeID:      "badge-weekend-saver",
		},
		{
			ID:           "food-budget-week",
			Title:        "Food Budget Week",
			Description:  "Keep food spending under 1000 for a week.",
			Type:         domain.ChallengeSpendLimit,
			DurationDays: 7,
			Target:       decimal.NewFromInt(1000),
			Categories:   "Food",
			BadgeID:      "badge-mindful-eater",
		},
		{
			ID:           "coffee-free-week",
			Title:        "Coffee-Free Week",
			Description:  "No coffee shop purchases for seven days.",
			Type:         domain.ChallengeNoSpend,
			DurationDays: 7,
			Categories:   "Coffee",
			BadgeID:      "badge-home-brewer",
		},
		{
			ID:           "entertainment-cap-month",
			Title:        "Entertainment Cap",
			Description:  "Spend less than 2000 on entertainment and subscriptions in 30 days.",
			Type:         domain.ChallengeSpendLimit,
			DurationDays: 30,
			Target:       decimal.NewFromInt(2000),
			Categories:   "Entertainment;Subscriptions",
			BadgeID:      "badge-fun-budgeter",
		},
		{
			ID:           "no-impulse-3-days",
			Title:        "Impulse Pause",
			Description:  "Three days without shopping.",
			Type:         domain.ChallengeNoSpend,
			DurationDays: 3,
			Categories:   "Shopping",
			BadgeID:      "badge-impulse-tamer",
		},
	}
}
