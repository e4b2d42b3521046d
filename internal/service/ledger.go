// Package service holds LedgerService, which owns every mutation of the ledger and runs
// the refresh pass (recurring catch-up, then challenge re-evaluation).
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/infra/observability"
	"github.com/boddenberg/moodledger-go/internal/port"
	"github.com/boddenberg/moodledger-go/internal/recurring"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/ledger")

const catalogCacheKey = "catalog"

// LedgerService orchestrates storage, the two engines and notifications.
type LedgerService struct {
	store    port.LedgerStore
	engine   *recurring.Engine
	catalog  port.Cache[[]domain.Challenge]
	notifier port.Notifier
	metrics  *observability.Metrics
	logger   *zap.Logger
	currency string
	clock    func() time.Time

	// refreshMu serialises refresh passes so two catch-ups never race on
	// the same template cursor.
	refreshMu sync.Mutex
}

// Option customises a LedgerService.
type Option func(*LedgerService)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *LedgerService) { s.clock = clock }
}

// NewLedgerService creates the ledger service with all dependencies injected.
func NewLedgerService(
	store port.LedgerStore,
	engine *recurring.Engine,
	catalog port.Cache[[]domain.Challenge],
	notifier port.Notifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
	currency string,
	opts ...Option,
) *LedgerService {
	s := &LedgerService{
		store:    store,
		engine:   engine,
		catalog:  catalog,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		currency: currency,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EngineMetrics returns the counter snapshot.
func (s *LedgerService) EngineMetrics() *domain.EngineMetrics {
	return s.metrics.Snapshot()
}

// recordAnomalies logs and counts every anomaly and returns their messages.
func (s *LedgerService) recordAnomalies(operation string, anomalies []error) []string {
	msgs := make([]string, 0, len(anomalies))
	for _, err := range anomalies {
		var (
			integrity *domain.ErrDataIntegrity
			runaway   *domain.ErrRunawayGuard
		)
		switch {
		case errors.As(err, &runaway):
			s.metrics.IncrAnomaly(observability.AnomalyRunawayGuard)
			s.logger.Warn("runaway guard tripped",
				zap.String("operation", operation),
				zap.String("template_id", runaway.TemplateID),
				zap.Int("iterations", runaway.Iterations),
			)
		case errors.As(err, &integrity):
			s.metrics.IncrAnomaly(observability.AnomalyDataIntegrity)
			s.logger.Warn("data integrity anomaly",
				zap.String("operation", operation),
				zap.String("entity", integrity.Entity),
				zap.String("id", integrity.ID),
				zap.String("reason", integrity.Reason),
			)
		default:
			s.metrics.IncrAnomaly(observability.AnomalyOther)
			s.logger.Warn("anomaly", zap.String("operation", operation), zap.Error(err))
		}
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// notify delivers the deferred anomaly notice. Delivery failures are logged
// and counted, never returned.
func (s *LedgerService) notify(ctx context.Context, operation string, anomalies []string) {
	if len(anomalies) == 0 {
		return
	}
	report := &domain.AnomalyReport{
		Operation: operation,
		Anomalies: anomalies,
		At:        s.clock(),
	}
	if err := s.notifier.Notify(ctx, report); err != nil {
		s.metrics.IncrNotification("failed")
		s.logger.Error("failed to deliver anomaly report",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncrNotification("sent")
}
