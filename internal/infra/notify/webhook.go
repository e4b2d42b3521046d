// Package notify delivers the deferred "some items could not be processed"
// notice produced by a refresh pass.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("notify")

// Webhook posts anomaly reports as JSON to a configured URL.
type Webhook struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewWebhook creates a webhook notifier.
func NewWebhook(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Webhook {
	return &Webhook{
		httpClient: httpClient,
		url:        url,
		cb:         cb,
		cfg:        cfg,
	}
}

// Notify delivers the report. 4xx responses are not retried.
func (w *Webhook) Notify(ctx context.Context, report *domain.AnomalyReport) error {
	ctx, span := tracer.Start(ctx, "Webhook.Notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.operation", report.Operation),
		attribute.Int("report.anomalies", len(report.Anomalies)),
	)

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode anomaly report: %w", err)
	}

	_, err = w.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, w.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := w.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return nil
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return resilience.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
			default:
				return fmt.Errorf("webhook returned status %d", resp.StatusCode)
			}
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "webhook", Err: err}
	}
	return nil
}

// Log writes anomaly reports to the logger. Used when no webhook is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log-only notifier.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs the report at Warn.
func (l *Log) Notify(_ context.Context, report *domain.AnomalyReport) error {
	l.logger.Warn("some items could not be processed",
		zap.String("operation", report.Operation),
		zap.Strings("anomalies", report.Anomalies),
		zap.Time("at", report.At),
	)
	return nil
}
