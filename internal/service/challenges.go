package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Challenges: catalog, start, achievements
// ============================================================

// ListCatalog returns the challenge definitions, served from cache when warm.
func (s *LedgerService) ListCatalog(ctx context.Context) ([]domain.Challenge, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListCatalog")
	defer span.End()

	return s.loadCatalog(ctx)
}

func (s *LedgerService) loadCatalog(ctx context.Context) ([]domain.Challenge, error) {
	if cached, ok := s.catalog.Get(catalogCacheKey); ok {
		s.metrics.IncrCacheHit(catalogCacheKey)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(catalogCacheKey)

	catalog, err := s.store.ListChallengeCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenge catalog: %w", err)
	}
	if catalog == nil {
		catalog = []domain.Challenge{}
	}
	s.catalog.Set(catalogCacheKey, catalog)
	return catalog, nil
}

// StartChallenge opens a new active attempt of challengeID at the current instant.
func (s *LedgerService) StartChallenge(ctx context.Context, challengeID string) (*domain.UserChallenge, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.StartChallenge")
	defer span.End()
	span.SetAttributes(attribute.String("challenge.id", challengeID))

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if findChallenge(catalog, challengeID) == nil {
		return nil, &domain.ErrNotFound{Resource: "challenge", ID: challengeID}
	}

	uc := &domain.UserChallenge{
		ID:          uuid.New().String(),
		ChallengeID: challengeID,
		StartDate:   s.clock(),
		Status:      domain.ChallengeActive,
		Progress:    decimal.Zero,
	}
	if err := s.store.CreateUserChallenge(ctx, uc); err != nil {
		return nil, err
	}

	s.logger.Info("challenge started",
		zap.String("user_challenge_id", uc.ID),
		zap.String("challenge_id", challengeID),
	)
	return uc, nil
}

// ListUserChallenges returns every attempt, terminal ones included, joined
// with its definition for the achievements view.
func (s *LedgerService) ListUserChallenges(ctx context.Context) ([]domain.UserChallengeView, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListUserChallenges")
	defer span.End()

	attempts, err := s.store.ListUserChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user challenges: %w", err)
	}
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]domain.UserChallengeView, 0, len(attempts))
	for _, uc := range attempts {
		views = append(views, domain.UserChallengeView{
			UserChallenge: uc,
			Challenge:     findChallenge(catalog, uc.ChallengeID),
		})
	}
	return views, nil
}

func findChallenge(catalog []domain.Challenge, id string) *domain.Challenge {
	for i := range catalog {
		if catalog[i].ID == id {
			c := catalog[i]
			return &c
		}
	}
	return nil
}
