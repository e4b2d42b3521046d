package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const tokenIssuer = "moodledger"

// AuthService guards the local API with a device passcode. The passcode is
// exchanged for a short-lived HS256 access token.
type AuthService struct {
	passcodeHash []byte
	jwtSecret    []byte
	ttl          time.Duration
	logger       *zap.Logger
}

// NewAuthService creates the auth service. An empty passcodeHash disables auth.
func NewAuthService(passcodeHash, jwtSecret string, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		passcodeHash: []byte(passcodeHash),
		jwtSecret:    []byte(jwtSecret),
		ttl:          ttl,
		logger:       logger,
	}
}

// Enabled reports whether a passcode is configured.
func (s *AuthService) Enabled() bool {
	return len(s.passcodeHash) > 0
}

// ============================================================
// IssueToken: POST /v1/auth/token
// ============================================================

func (s *AuthService) IssueToken(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error) {
	_, span := authTracer.Start(ctx, "AuthService.IssueToken")
	defer span.End()

	if !s.Enabled() {
		return nil, &domain.ErrValidation{Field: "passcode", Message: "authentication is disabled"}
	}
	if req.Passcode == "" {
		return nil, &domain.ErrValidation{Field: "passcode", Message: "required"}
	}
	if err := bcrypt.CompareHashAndPassword(s.passcodeHash, []byte(req.Passcode)); err != nil {
		s.logger.Warn("auth: wrong passcode")
		return nil, &domain.ErrUnauthorized{Message: "invalid passcode"}
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    tokenIssuer,
		Subject:   "device",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("access token issued", zap.String("jti", claims.ID))
	return &domain.TokenResponse{
		AccessToken: signed,
		ExpiresIn:   int(s.ttl.Seconds()),
	}, nil
}

// ============================================================
// ValidateToken: used by middleware
// ============================================================

func (s *AuthService) ValidateToken(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}
