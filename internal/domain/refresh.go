package domain

import "time"

// RefreshResult summarises one orchestrator pass.
type RefreshResult struct {
	Materialized      int       `json:"materialized"`
	TemplatesAdvanced int       `json:"templates_advanced"`
	ChallengesChanged int       `json:"challenges_changed"`
	Anomalies         []string  `json:"anomalies,omitempty"`
	RanAt             time.Time `json:"ran_at"`
}

// AnomalyReport is the deferred, non-blocking notice that some recurring
// items or challenges could not be processed.
type AnomalyReport struct {
	Operation string    `json:"operation"`
	Anomalies []string  `json:"anomalies"`
	At        time.Time `json:"at"`
}

// EngineMetrics is the counter snapshot exposed at GET /v1/metrics/engine.
type EngineMetrics struct {
	MaterializedTotal   int64            `json:"materialized_total"`
	AnomaliesByKind     map[string]int64 `json:"anomalies_by_kind"`
	TransitionsByStatus map[string]int64 `json:"transitions_by_status"`
	CatalogCacheHitRate float64          `json:"catalog_cache_hit_rate"`
	NotificationsFailed int64            `json:"notifications_failed"`
	NotificationsSent   int64            `json:"notifications_sent"`
}

// TokenRequest exchanges the device passcode for an access token.
type TokenRequest struct {
	Passcode string `json:"passcode"`
}

// TokenResponse carries the issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
