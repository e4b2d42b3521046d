package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/moodledger-go/internal/service"

	"go.uber.org/zap"
)

// bearerToken pulls the token out of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// JWTAuthMiddleware rejects requests without a valid session token. With no
// passcode configured it returns next unchanged.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authSvc == nil || !authSvc.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logger.Warn("rejected request without bearer token", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "missing or malformed bearer token")
				return
			}
			if _, err := authSvc.ValidateToken(token); err != nil {
				logger.Warn("rejected session token", zap.String("path", r.URL.Path), zap.Error(err))
				handleServiceError(w, err, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
