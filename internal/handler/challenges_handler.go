package handler

import (
	"net/http"

	"github.com/boddenberg/moodledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Challenges: /v1/challenges
// ============================================================

func listCatalogHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/challenges/catalog")
		defer span.End()

		catalog, err := ledger.ListCatalog(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, catalog)
	}
}

func listUserChallengesHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/challenges")
		defer span.End()

		views, err := ledger.ListUserChallenges(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func startChallengeHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/challenges/{challengeId}/start")
		defer span.End()

		challengeID := chi.URLParam(r, "challengeId")
		span.SetAttributes(attribute.String("challenge.id", challengeID))

		uc, err := ledger.StartChallenge(ctx, challengeID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, uc)
	}
}
