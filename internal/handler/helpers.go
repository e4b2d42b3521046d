package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// positiveQueryInt reads a query parameter as an int in [1, max]; anything
// else yields def.
func positiveQueryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 || n > max {
		return def
	}
	return n
}

func parsePagination(r *http.Request) (page, pageSize int) {
	return positiveQueryInt(r, "page", 1, math.MaxInt32),
		positiveQueryInt(r, "page_size", defaultPageSize, maxPageSize)
}

// paginate slices items into the requested page.
func paginate[T any](items []T, page, pageSize int) domain.ListResponse[T] {
	from := min((page-1)*pageSize, len(items))
	to := min(from+pageSize, len(items))
	return domain.ListResponse[T]{
		Data:     items[from:to],
		Total:    len(items),
		Page:     page,
		PageSize: pageSize,
		HasMore:  to < len(items),
	}
}

// statusFor maps a domain error to its HTTP status. Server-side failures are
// reported as true; their message is not echoed to the client.
func statusFor(err error) (status int, serverSide bool) {
	var (
		notFound     *domain.ErrNotFound
		validation   *domain.ErrValidation
		conflict     *domain.ErrConflict
		unauthorized *domain.ErrUnauthorized
		external     *domain.ErrExternalService
		integrity    *domain.ErrDataIntegrity
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, false
	case errors.As(err, &validation):
		return http.StatusBadRequest, false
	case errors.As(err, &conflict):
		return http.StatusConflict, false
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, false
	case errors.As(err, &external):
		return http.StatusBadGateway, true
	case errors.As(err, &integrity):
		return http.StatusUnprocessableEntity, true
	}
	return http.StatusInternalServerError, true
}

// handleServiceError writes err as a JSON error body with the matching status.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, serverSide := statusFor(err)
	if !serverSide {
		logger.Debug("request rejected", zap.Int("status", status), zap.String("reason", err.Error()))
		writeError(w, status, err.Error())
		return
	}

	logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
