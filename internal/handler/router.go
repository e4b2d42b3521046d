package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/infra/observability"
	"github.com/boddenberg/moodledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the storage layer is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware.
// Routes serve the local UI (transaction log, recurring templates, challenges).
func NewRouter(ledger *service.LedgerService, authSvc *service.AuthService, db Pinger, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(db))
	r.Get("/readyz", readyzHandler(db, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if authSvc != nil && authSvc.Enabled() {
			r.Post("/auth/token", authTokenHandler(authSvc, logger))
		}

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			// Transactions
			r.Get("/transactions", listTransactionsHandler(ledger, logger))
			r.Post("/transactions", createTransactionHandler(ledger, logger))
			r.Post("/transactions/bulk-delete", bulkDeleteTransactionsHandler(ledger, logger))
			r.Put("/transactions/{id}", updateTransactionHandler(ledger, logger))
			r.Delete("/transactions/{id}", deleteTransactionHandler(ledger, logger))

			// Recurring templates
			r.Get("/recurring", listTemplatesHandler(ledger, logger))
			r.Post("/recurring", createTemplateHandler(ledger, logger))
			r.Put("/recurring/{id}", updateTemplateHandler(ledger, logger))
			r.Delete("/recurring/{id}", deleteTemplateHandler(ledger, logger))

			// Challenges
			r.Get("/challenges/catalog", listCatalogHandler(ledger, logger))
			r.Get("/challenges", listUserChallengesHandler(ledger, logger))
			r.Post("/challenges/{challengeId}/start", startChallengeHandler(ledger, logger))

			// Refresh orchestrator
			r.Post("/refresh", refreshHandler(ledger, logger))
			r.Get("/metrics/engine", engineMetricsHandler(ledger))
		})
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "moodledger", Status: "healthy", LastChecked: now},
		}

		overall := "healthy"
		if db != nil {
			start := time.Now()
			err := db.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
				overall = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "sqlite", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logger.Warn("readiness: database unreachable", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// Refresh: POST /v1/refresh, GET /v1/metrics/engine
// ============================================================

func refreshHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/refresh")
		defer span.End()

		res, err := ledger.Refresh(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func engineMetricsHandler(ledger *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ledger.EngineMetrics())
	}
}
