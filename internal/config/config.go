package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Storage
	DatabasePath string

	// Ledger
	Timezone                  string // IANA name; calendar arithmetic for recurring templates
	Currency                  string // applied to new transactions and templates
	RefreshInterval           time.Duration
	MaxOccurrencesPerTemplate int
	CatalogCacheTTL           time.Duration

	// Notifications
	NotifyWebhookURL string // empty = log-only
	HTTPTimeout      time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Observability
	OTLPEndpoint string // empty = tracing disabled

	// JWT / Auth
	JWTSecret    string
	JWTTTL       time.Duration
	PasscodeHash string // bcrypt; empty = auth disabled
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabasePath: getEnv("DATABASE_PATH", "moodledger.db"),

		Timezone:                  getEnv("TIMEZONE", "UTC"),
		Currency:                  getEnv("CURRENCY", "EUR"),
		RefreshInterval:           getEnvDuration("REFRESH_INTERVAL", time.Hour),
		MaxOccurrencesPerTemplate: getEnvInt("MAX_OCCURRENCES_PER_TEMPLATE", 36600),
		CatalogCacheTTL:           getEnvDuration("CATALOG_CACHE_TTL", 10*time.Minute),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret:    getEnv("JWT_SECRET", "moodledger-default-dev-secret-change-me"),
		JWTTTL:       getEnvDuration("JWT_TTL", 24*time.Hour),
		PasscodeHash: getEnv("PASSCODE_HASH", ""),
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
