package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T, passcode string, ttl time.Duration) *service.AuthService {
	t.Helper()
	hash := ""
	if passcode != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		hash = string(b)
	}
	return service.NewAuthService(hash, "test-secret", ttl, zap.NewNop())
}

func TestAuth_IssueAndValidate(t *testing.T) {
	auth := newAuth(t, "2468", time.Hour)
	if !auth.Enabled() {
		t.Fatal("expected auth to be enabled")
	}

	resp, err := auth.IssueToken(context.Background(), &domain.TokenRequest{Passcode: "2468"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("expected expires_in 3600, got %d", resp.ExpiresIn)
	}

	claims, err := auth.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestAuth_WrongPasscode(t *testing.T) {
	auth := newAuth(t, "2468", time.Hour)

	_, err := auth.IssueToken(context.Background(), &domain.TokenRequest{Passcode: "0000"})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	auth := newAuth(t, "2468", -time.Minute)

	resp, err := auth.IssueToken(context.Background(), &domain.TokenRequest{Passcode: "2468"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := auth.ValidateToken(resp.AccessToken); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestAuth_ForeignSecretRejected(t *testing.T) {
	issuer := newAuth(t, "2468", time.Hour)
	resp, _ := issuer.IssueToken(context.Background(), &domain.TokenRequest{Passcode: "2468"})

	other := service.NewAuthService("x", "another-secret", time.Hour, zap.NewNop())
	if _, err := other.ValidateToken(resp.AccessToken); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestAuth_Disabled(t *testing.T) {
	auth := newAuth(t, "", time.Hour)
	if auth.Enabled() {
		t.Fatal("expected auth to be disabled without a passcode hash")
	}
	var verr *domain.ErrValidation
	if _, err := auth.IssueToken(context.Background(), &domain.TokenRequest{Passcode: "1"}); !errors.As(err, &verr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
