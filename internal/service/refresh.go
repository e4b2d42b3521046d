package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/moodledger-go/internal/challenge"
	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/recurring"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxCatchUpAttempts bounds re-reads after a lost compare-and-swap.
const maxCatchUpAttempts = 2

// ============================================================
// Refresh: recurring catch-up + challenge re-evaluation
// ============================================================

// CatchUp materializes every due recurring occurrence.
func (s *LedgerService) CatchUp(ctx context.Context) (*domain.RefreshResult, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	res := &domain.RefreshResult{RanAt: s.clock()}
	if err := s.catchUp(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Reevaluate recomputes every active challenge attempt.
func (s *LedgerService) Reevaluate(ctx context.Context) (*domain.RefreshResult, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	res := &domain.RefreshResult{RanAt: s.clock()}
	if err := s.reevaluate(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Refresh runs the foreground pass: catch-up first so freshly materialized
// transactions count towards challenges.
func (s *LedgerService) Refresh(ctx context.Context) (*domain.RefreshResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Refresh")
	defer span.End()

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	res := &domain.RefreshResult{RanAt: s.clock()}
	if err := s.catchUp(ctx, res); err != nil {
		return nil, err
	}
	if err := s.reevaluate(ctx, res); err != nil {
		return nil, err
	}

	s.logger.Info("refresh completed",
		zap.Int("materialized", res.Materialized),
		zap.Int("templates_advanced", res.TemplatesAdvanced),
		zap.Int("challenges_changed", res.ChallengesChanged),
		zap.Int("anomalies", len(res.Anomalies)),
	)
	return res, nil
}

// Run refreshes every interval until ctx is cancelled. A non-positive
// interval disables the loop.
func (s *LedgerService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("periodic refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *LedgerService) catchUp(ctx context.Context, res *domain.RefreshResult) error {
	ctx, span := tracer.Start(ctx, "LedgerService.CatchUp")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRefreshDuration("catch_up", time.Since(start))
	}()

	var (
		out recurring.Result
		err error
	)
	for attempt := 1; attempt <= maxCatchUpAttempts; attempt++ {
		out, err = s.materializeOnce(ctx)
		var conflict *domain.ErrConflict
		if !errors.As(err, &conflict) {
			break
		}
		s.logger.Warn("template cursor moved during catch-up, re-reading",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil {
		return fmt.Errorf("catch up recurring templates: %w", err)
	}

	s.metrics.AddMaterialized(len(out.New))
	anomalies := s.recordAnomalies("catch_up", out.Anomalies)
	span.SetAttributes(
		attribute.Int("materialized", len(out.New)),
		attribute.Int("anomalies", len(anomalies)),
	)

	res.Materialized += len(out.New)
	res.TemplatesAdvanced += len(out.Advances)
	res.Anomalies = append(res.Anomalies, anomalies...)

	if len(out.New) > 0 {
		s.logger.Info("recurring transactions materialized",
			zap.Int("count", len(out.New)),
			zap.Int("templates", len(out.Advances)),
		)
	}
	s.notify(ctx, "catch_up", anomalies)
	return nil
}

func (s *LedgerService) materializeOnce(ctx context.Context) (recurring.Result, error) {
	var (
		templates []domain.RecurringTemplate
		existing  map[string]struct{}
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.store.ListRecurringTemplates(gCtx)
		if err != nil {
			return fmt.Errorf("list templates: %w", err)
		}
		templates = t
		return nil
	})
	g.Go(func() error {
		txs, err := s.store.ListTransactions(gCtx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		existing = make(map[string]struct{}, len(txs))
		for _, tx := range txs {
			existing[tx.ID] = struct{}{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return recurring.Result{}, err
	}

	out := s.engine.MaterializeDue(templates, existing, s.clock())
	if err := s.store.SaveMaterialization(ctx, out.New, out.Advances); err != nil {
		return recurring.Result{}, err
	}
	return out, nil
}

func (s *LedgerService) reevaluate(ctx context.Context, res *domain.RefreshResult) error {
	ctx, span := tracer.Start(ctx, "LedgerService.Reevaluate")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRefreshDuration("reevaluate", time.Since(start))
	}()

	var (
		attempts     []domain.UserChallenge
		catalog      []domain.Challenge
		transactions []domain.Transaction
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.store.ListUserChallenges(gCtx)
		if err != nil {
			return fmt.Errorf("list user challenges: %w", err)
		}
		attempts = a
		return nil
	})
	g.Go(func() error {
		c, err := s.loadCatalog(gCtx)
		if err != nil {
			return err
		}
		catalog = c
		return nil
	})
	g.Go(func() error {
		t, err := s.store.ListTransactions(gCtx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		transactions = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reevaluate challenges: %w", err)
	}

	out := challenge.Evaluate(attempts, catalog, transactions, s.clock())
	saved, err := s.store.ReplaceUserChallenges(ctx, out.Changed)
	if err != nil {
		return fmt.Errorf("save challenge state: %w", err)
	}

	for _, uc := range saved {
		if uc.Terminal() {
			s.metrics.IncrTransition(uc.Status)
			s.logger.Info("challenge finished",
				zap.String("user_challenge_id", uc.ID),
				zap.String("challenge_id", uc.ChallengeID),
				zap.String("status", string(uc.Status)),
				zap.String("progress", uc.Progress.String()),
			)
		}
	}

	anomalies := s.recordAnomalies("reevaluate", out.Anomalies)
	span.SetAttributes(
		attribute.Int("changed", len(saved)),
		attribute.Int("anomalies", len(anomalies)),
	)
	res.ChallengesChanged += len(saved)
	res.Anomalies = append(res.Anomalies, anomalies...)

	s.notify(ctx, "reevaluate", anomalies)
	return nil
}

// afterMutation re-evaluates challenges once the log changed. The mutation
// itself already succeeded, so a failure here is only logged.
func (s *LedgerService) afterMutation(ctx context.Context) {
	if _, err := s.Reevaluate(ctx); err != nil {
		s.logger.Error("reevaluate after mutation failed", zap.Error(err))
	}
}
