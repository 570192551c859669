package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var castingEnv = []string{
	"CASTING_PORT", "CASTING_METRICS_PORT", "CASTING_ADMIN_TOKEN", "CASTING_ALLOWED_ORIGINS",
	"CASTING_DATABASE_URL", "CASTING_DATABASE_MIGRATE", "CASTING_HERMES_URL", "CASTING_JWT_SECRET",
	"CASTING_GEMINI_API_KEY", "CASTING_GEMINI_MODEL", "CASTING_DEFAULT_TOP_N",
	"CASTING_STORAGE_BUCKET", "CASTING_STORAGE_ENDPOINT", "CASTING_STORAGE_ACCESS_KEY_ID",
	"CASTING_STORAGE_SECRET_ACCESS_KEY", "CASTING_STORAGE_PUBLIC_BASE_URL",
	"CASTING_PAYMENTS_PROVIDER", "CASTING_STRIPE_SECRET_KEY", "CASTING_STRIPE_WEBHOOK_SECRET",
	"CASTING_LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range castingEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8700 {
		t.Errorf("expected port 8700, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected metrics port 8701, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.RateLimitPerMinute != 120 {
		t.Errorf("expected rate limit 120, got %d", cfg.Server.RateLimitPerMinute)
	}
	if cfg.Hermes.URL != "nats://localhost:4222" {
		t.Errorf("expected nats URL, got %s", cfg.Hermes.URL)
	}
	if cfg.Database.URL != "" {
		t.Errorf("expected empty database URL, got %s", cfg.Database.URL)
	}
	if cfg.Matching.DefaultTopN != 5 {
		t.Errorf("expected top n 5, got %d", cfg.Matching.DefaultTopN)
	}
	if cfg.Matching.SynergyBonus != 5 {
		t.Errorf("expected synergy bonus 5, got %f", cfg.Matching.SynergyBonus)
	}
	if cfg.Matching.SynergyRequestThreshold != 0.5 || cfg.Matching.SynergyCandidateThreshold != 0.7 {
		t.Errorf("unexpected synergy thresholds %+v", cfg.Matching)
	}
	if cfg.Credits.Initial != 10 {
		t.Errorf("expected 10 initial credits, got %d", cfg.Credits.Initial)
	}
	if cfg.Credits.UnlockCost != 1 {
		t.Errorf("expected unlock cost 1, got %d", cfg.Credits.UnlockCost)
	}
	if len(cfg.Credits.Packages) != 3 {
		t.Errorf("expected 3 credit packages, got %d", len(cfg.Credits.Packages))
	}
	if cfg.Payments.Provider != "mock" {
		t.Errorf("expected mock payments, got %s", cfg.Payments.Provider)
	}
	if cfg.Storage.MaxSizeMB != 5 {
		t.Errorf("expected 5MB upload limit, got %d", cfg.Storage.MaxSizeMB)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}

	// Duration helpers
	if cfg.GeminiTimeout() != 20*time.Second {
		t.Errorf("expected GeminiTimeout 20s, got %v", cfg.GeminiTimeout())
	}
	if cfg.AuthLeeway() != 30*time.Second {
		t.Errorf("expected AuthLeeway 30s, got %v", cfg.AuthLeeway())
	}
	if cfg.PendingPurchaseTTL() != time.Hour {
		t.Errorf("expected PendingPurchaseTTL 1h, got %v", cfg.PendingPurchaseTTL())
	}
	if cfg.ReapInterval() != time.Minute {
		t.Errorf("expected ReapInterval 1m, got %v", cfg.ReapInterval())
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CASTING_PORT", "9000")
	t.Setenv("CASTING_METRICS_PORT", "9001")
	t.Setenv("CASTING_ADMIN_TOKEN", "secret-token")
	t.Setenv("CASTING_ALLOWED_ORIGINS", "https://utopiax.kr, https://admin.utopiax.kr")
	t.Setenv("CASTING_DATABASE_URL", "postgres://localhost/casting_test")
	t.Setenv("CASTING_HERMES_URL", "nats://nats:4222")
	t.Setenv("CASTING_JWT_SECRET", "jwt-secret")
	t.Setenv("CASTING_GEMINI_API_KEY", "gemini-key")
	t.Setenv("CASTING_DEFAULT_TOP_N", "8")
	t.Setenv("CASTING_PAYMENTS_PROVIDER", "stripe")
	t.Setenv("CASTING_STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("CASTING_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 9001 {
		t.Errorf("expected metrics port 9001, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.AdminToken != "secret-token" {
		t.Errorf("expected admin token 'secret-token', got '%s'", cfg.Server.AdminToken)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://admin.utopiax.kr" {
		t.Errorf("unexpected allowed origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Database.URL != "postgres://localhost/casting_test" {
		t.Errorf("expected database URL, got '%s'", cfg.Database.URL)
	}
	if cfg.Hermes.URL != "nats://nats:4222" {
		t.Errorf("expected hermes URL, got '%s'", cfg.Hermes.URL)
	}
	if cfg.Auth.JWTSecret != "jwt-secret" {
		t.Errorf("expected jwt secret, got '%s'", cfg.Auth.JWTSecret)
	}
	if cfg.Gemini.APIKey != "gemini-key" {
		t.Errorf("expected gemini key, got '%s'", cfg.Gemini.APIKey)
	}
	if cfg.Matching.DefaultTopN != 8 {
		t.Errorf("expected top n 8, got %d", cfg.Matching.DefaultTopN)
	}
	if cfg.Payments.Provider != "stripe" {
		t.Errorf("expected stripe provider, got '%s'", cfg.Payments.Provider)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadEmptyHermesURLDisablesEvents(t *testing.T) {
	clearEnv(t)
	t.Setenv("CASTING_HERMES_URL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hermes.URL != "" {
		t.Errorf("expected empty hermes URL, got '%s'", cfg.Hermes.URL)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "casting.yaml")
	data := `
server:
  port: 9100
matching:
  default_top_n: 3
  synergy_bonus: 8
credits:
  initial: 20
  packages:
    - id: mini
      credits: 5
      price_krw: 5000
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected default metrics port to survive, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Matching.DefaultTopN != 3 || cfg.Matching.SynergyBonus != 8 {
		t.Errorf("unexpected matching config %+v", cfg.Matching)
	}
	if cfg.Credits.Initial != 20 {
		t.Errorf("expected 20 initial credits, got %d", cfg.Credits.Initial)
	}
	p, ok := cfg.Package("mini")
	if !ok || p.Credits != 5 {
		t.Errorf("expected mini package, got %+v (found=%v)", p, ok)
	}
	if _, ok := cfg.Package("starter"); ok {
		t.Error("expected file packages to replace defaults")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8700 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero top n", func(c *Config) { c.Matching.DefaultTopN = 0 }, "default_top_n"},
		{"threshold above one", func(c *Config) { c.Matching.SynergyCandidateThreshold = 1.5 }, "synergy_candidate_threshold"},
		{"negative bonus", func(c *Config) { c.Matching.SynergyBonus = -1 }, "synergy_bonus"},
		{"free unlock", func(c *Config) { c.Credits.UnlockCost = 0 }, "unlock_cost"},
		{"duplicate package", func(c *Config) {
			c.Credits.Packages = append(c.Credits.Packages, c.Credits.Packages[0])
		}, "duplicate"},
		{"stripe without key", func(c *Config) { c.Payments.Provider = "stripe" }, "stripe_secret_key"},
		{"unknown provider", func(c *Config) { c.Payments.Provider = "paypal" }, "unknown"},
		{"stripe ttl below session minimum", func(c *Config) {
			c.Payments.Provider = "stripe"
			c.Payments.StripeSecretKey = "sk_test"
			c.Credits.PendingTTLMinutes = 10
		}, "pending_ttl_minutes"},
		{"stripe ttl above session maximum", func(c *Config) {
			c.Payments.Provider = "stripe"
			c.Payments.StripeSecretKey = "sk_test"
			c.Credits.PendingTTLMinutes = 2000
		}, "pending_ttl_minutes"},
		{"stripe ttl within session window", func(c *Config) {
			c.Payments.Provider = "stripe"
			c.Payments.StripeSecretKey = "sk_test"
			c.Credits.PendingTTLMinutes = 30
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errHas == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errHas) {
				t.Errorf("expected error containing %q, got %v", tt.errHas, err)
			}
		})
	}
}
