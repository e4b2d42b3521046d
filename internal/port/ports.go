// Package port defines the interfaces (ports) for external dependencies.
// The engines are pure; everything they need from the outside world is
// read and written through these ports by the service layer.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/recurring"
)

// TransactionStore persists the transaction log.
type TransactionStore interface {
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error
	DeleteTransactions(ctx context.Context, ids ...string) (int, error)
}

// RecurringStore persists recurring templates.
type RecurringStore interface {
	ListRecurringTemplates(ctx context.Context) ([]domain.RecurringTemplate, error)
	GetRecurringTemplate(ctx context.Context, id string) (*domain.RecurringTemplate, error)
	CreateRecurringTemplate(ctx context.Context, tpl *domain.RecurringTemplate) error
	// UpdateRecurringTemplate saves a user edit; it never touches LastMaterialized.
	UpdateRecurringTemplate(ctx context.Context, tpl *domain.RecurringTemplate) error
	DeleteRecurringTemplate(ctx context.Context, id string) error

	// SaveMaterialization appends txs and applies advances atomically. Each
	// advance is a compare-and-swap on Previous; a miss returns ErrConflict.
	// It is the only way cursors move, so concurrent catch-ups cannot lose
	// updates.
	SaveMaterialization(ctx context.Context, txs []domain.Transaction, advances []recurring.Advance) error
}

// ChallengeStore persists the catalog and user attempts.
type ChallengeStore interface {
	ListChallengeCatalog(ctx context.Context) ([]domain.Challenge, error)
	ListUserChallenges(ctx context.Context) ([]domain.UserChallenge, error)
	// CreateUserChallenge returns ErrConflict if an active attempt of the
	// same challenge already exists.
	CreateUserChallenge(ctx context.Context, uc *domain.UserChallenge) error
	// ReplaceUserChallenges writes attempts that are still active in storage
	// and returns the ones it wrote; attempts that ended meanwhile are skipped.
	ReplaceUserChallenges(ctx context.Context, changed []domain.UserChallenge) ([]domain.UserChallenge, error)
}

// LedgerStore is the full storage layer.
type LedgerStore interface {
	TransactionStore
	RecurringStore
	ChallengeStore
}

// Notifier delivers deferred anomaly reports.
type Notifier interface {
	Notify(ctx context.Context, report *domain.AnomalyReport) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
