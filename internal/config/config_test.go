package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Currency != "EUR" {
		t.Errorf("expected EUR, got %s", cfg.Currency)
	}
	if cfg.MaxOccurrencesPerTemplate != 36600 {
		t.Errorf("expected 36600, got %d", cfg.MaxOccurrencesPerTemplate)
	}
	if cfg.RefreshInterval != time.Hour {
		t.Errorf("expected 1h refresh interval, got %s", cfg.RefreshInterval)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("MAX_OCCURRENCES_PER_TEMPLATE", "not-a-number")
	t.Setenv("TIMEZONE", "Europe/Berlin")

	cfg := Load()
	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.RefreshInterval != 15*time.Minute {
		t.Errorf("expected 15m, got %s", cfg.RefreshInterval)
	}
	if cfg.MaxOccurrencesPerTemplate != 36600 {
		t.Errorf("expected fallback on bad int, got %d", cfg.MaxOccurrencesPerTemplate)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Errorf("expected Europe/Berlin, got %s", loc)
	}
}

func TestLocation_Invalid(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus"}
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestLoadDotEnv_EnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "CURRENCY=USD\nDATABASE_PATH=\"/tmp/from-dotenv.db\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CURRENCY", "GBP")
	t.Setenv("DATABASE_PATH", "")
	os.Unsetenv("DATABASE_PATH")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load .env: %v", err)
	}
	if got := os.Getenv("CURRENCY"); got != "GBP" {
		t.Errorf("expected existing env to win, got %s", got)
	}
	if got := os.Getenv("DATABASE_PATH"); got != "/tmp/from-dotenv.db" {
		t.Errorf("expected value from .env, got %q", got)
	}
}
