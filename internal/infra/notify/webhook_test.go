package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/infra/notify"
	"github.com/boddenberg/moodledger-go/internal/infra/resilience"

	"go.uber.org/zap"
)

var retryCfg = resilience.Config{MaxRetries: 2, InitialBackoff: 5 * time.Millisecond}

func report() *domain.AnomalyReport {
	return &domain.AnomalyReport{
		Operation: "catch_up",
		Anomalies: []string{"runaway guard tripped for template rent after 100 iterations"},
		At:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestWebhook_DeliversReport(t *testing.T) {
	var got domain.AnomalyReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := notify.NewWebhook(srv.Client(), srv.URL, resilience.NewCircuitBreaker("test"), retryCfg)
	if err := wh.Notify(context.Background(), report()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Operation != "catch_up" || len(got.Anomalies) != 1 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := notify.NewWebhook(srv.Client(), srv.URL, resilience.NewCircuitBreaker("test"), retryCfg)
	if err := wh.Notify(context.Background(), report()); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestWebhook_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := notify.NewWebhook(srv.Client(), srv.URL, resilience.NewCircuitBreaker("test"), retryCfg)
	err := wh.Notify(context.Background(), report())

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestLog_NeverFails(t *testing.T) {
	if err := notify.NewLog(zap.NewNop()).Notify(context.Background(), report()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
