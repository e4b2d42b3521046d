package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions: /v1/transactions
// ============================================================

// listTransactionsHandler supports ?from=&to= (RFC3339), ?category=a,b and pagination.
func listTransactionsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		q := r.URL.Query()
		var (
			txs []domain.Transaction
			err error
		)
		if q.Get("from") != "" || q.Get("to") != "" {
			from, to, perr := parseRange(q.Get("from"), q.Get("to"))
			if perr != nil {
				handleServiceError(w, perr, logger)
				return
			}
			txs, err = ledger.ListTransactionsBetween(ctx, from, to)
		} else {
			txs, err = ledger.ListTransactions(ctx)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if catFilter := q.Get("category"); catFilter != "" {
			allowed := make(map[string]bool)
			for _, c := range strings.Split(catFilter, ",") {
				if c = strings.TrimSpace(c); c != "" {
					allowed[c] = true
				}
			}
			filtered := make([]domain.Transaction, 0, len(txs))
			for _, tx := range txs {
				if allowed[tx.Category] {
					filtered = append(filtered, tx)
				}
			}
			txs = filtered
		}

		page, pageSize := parsePagination(r)
		span.SetAttributes(attribute.Int("transactions.count", len(txs)))
		writeJSON(w, http.StatusOK, paginate(txs, page, pageSize))
	}
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from := time.Unix(0, 0).UTC()
	to := time.Now().UTC()
	var err error
	if fromRaw != "" {
		if from, err = time.Parse(time.RFC3339, fromRaw); err != nil {
			return from, to, &domain.ErrValidation{Field: "from", Message: "must be RFC3339"}
		}
	}
	if toRaw != "" {
		if to, err = time.Parse(time.RFC3339, toRaw); err != nil {
			return from, to, &domain.ErrValidation{Field: "to", Message: "must be RFC3339"}
		}
	}
	return from, to, nil
}

func createTransactionHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var req domain.TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := ledger.AddTransaction(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func updateTransactionHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/transactions/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("transaction.id", id))

		var req domain.TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := ledger.EditTransaction(ctx, id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func deleteTransactionHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("transaction.id", id))

		n, err := ledger.DeleteTransactions(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.DeleteResponse{Deleted: n})
	}
}

func bulkDeleteTransactionsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/bulk-delete")
		defer span.End()

		var req domain.BulkDeleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		n, err := ledger.DeleteTransactions(ctx, req.IDs...)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.DeleteResponse{Deleted: n})
	}
}
