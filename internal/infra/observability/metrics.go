package observability

import (
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Anomaly kinds used as label values.
const (
	AnomalyDataIntegrity = "data_integrity"
	AnomalyRunawayGuard  = "runaway_guard"
	AnomalyOther         = "other"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	refreshDuration *prometheus.HistogramVec
	materialized    prometheus.Counter
	anomalies       *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry keeps tests from hitting
// "duplicate collector" panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		refreshDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moodledger_refresh_duration_seconds",
				Help:    "Duration of refresh operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		materialized: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "moodledger_materialized_transactions_total",
				Help: "Transactions created by the recurring engine.",
			},
		),
		anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodledger_anomalies_total",
				Help: "Items skipped by the engines.",
			},
			[]string{"kind"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodledger_challenge_transitions_total",
				Help: "Challenge attempts persisted by status.",
			},
			[]string{"status"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodledger_cache_lookups_total",
				Help: "Cache lookups by cache and result (hit, miss).",
			},
			[]string{"cache", "result"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moodledger_notifications_total",
				Help: "Anomaly notifications by outcome.",
			},
			[]string{"status"},
		),
	}
}

// RecordRefreshDuration records the duration of a refresh operation.
func (m *Metrics) RecordRefreshDuration(operation string, d time.Duration) {
	m.refreshDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// AddMaterialized adds n materialized transactions.
func (m *Metrics) AddMaterialized(n int) {
	m.materialized.Add(float64(n))
}

// IncrAnomaly increments the anomaly counter for kind.
func (m *Metrics) IncrAnomaly(kind string) {
	m.anomalies.WithLabelValues(kind).Inc()
}

// IncrTransition increments the persisted challenge counter for status.
func (m *Metrics) IncrTransition(status domain.ChallengeStatus) {
	m.transitions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheLookups.WithLabelValues(cache, "hit").Inc()
}

func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheLookups.WithLabelValues(cache, "miss").Inc()
}

// IncrNotification increments the notification counter ("sent" or "failed").
func (m *Metrics) IncrNotification(status string) {
	m.notifications.WithLabelValues(status).Inc()
}

// Snapshot returns the current counter values for GET /v1/metrics/engine.
func (m *Metrics) Snapshot() *domain.EngineMetrics {
	hits := counterValue(m.cacheLookups.WithLabelValues("catalog", "hit"))
	misses := counterValue(m.cacheLookups.WithLabelValues("catalog", "miss"))
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	anomalies := make(map[string]int64)
	for _, kind := range []string{AnomalyDataIntegrity, AnomalyRunawayGuard, AnomalyOther} {
		anomalies[kind] = int64(counterValue(m.anomalies.WithLabelValues(kind)))
	}
	transitions := make(map[string]int64)
	for _, s := range []domain.ChallengeStatus{domain.ChallengeActive, domain.ChallengeCompleted, domain.ChallengeFailed} {
		transitions[string(s)] = int64(counterValue(m.transitions.WithLabelValues(string(s))))
	}

	return &domain.EngineMetrics{
		MaterializedTotal:   int64(counterValue(m.materialized)),
		AnomaliesByKind:     anomalies,
		TransitionsByStatus: transitions,
		CatalogCacheHitRate: hitRate,
		NotificationsSent:   int64(counterValue(m.notifications.WithLabelValues("sent"))),
		NotificationsFailed: int64(counterValue(m.notifications.WithLabelValues("failed"))),
	}
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if c.Write(&out) != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}
