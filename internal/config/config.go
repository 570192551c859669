package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Auth     AuthConfig     `yaml:"auth"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Matching MatchingConfig `yaml:"matching"`
	Storage  StorageConfig  `yaml:"storage"`
	Credits  CreditsConfig  `yaml:"credits"`
	Payments PaymentsConfig `yaml:"payments"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port               int      `yaml:"port"`
	MetricsPort        int      `yaml:"metrics_port"`
	AdminToken         string   `yaml:"admin_token"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
}

// DatabaseConfig selects the persistence backend. An empty URL runs the
// service against the in-memory store.
type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	LeewaySeconds int    `yaml:"leeway_seconds"`
}

type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type MatchingConfig struct {
	DefaultTopN               int     `yaml:"default_top_n"`
	SynergyBonus              float64 `yaml:"synergy_bonus"`
	SynergyRequestThreshold   float64 `yaml:"synergy_request_threshold"`
	SynergyCandidateThreshold float64 `yaml:"synergy_candidate_threshold"`
	SynergyMinTags            int     `yaml:"synergy_min_tags"`
}

type StorageConfig struct {
	Bucket           string `yaml:"bucket"`
	Endpoint         string `yaml:"endpoint"`
	Region           string `yaml:"region"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	PublicBaseURL    string `yaml:"public_base_url"`
	MaxSizeMB        int    `yaml:"max_size_mb"`
	URLExpiryMinutes int    `yaml:"url_expiry_minutes"`
}

type CreditPackage struct {
	ID       string `yaml:"id" json:"id"`
	Credits  int    `yaml:"credits" json:"credits"`
	PriceKRW int64  `yaml:"price_krw" json:"price_krw"`
}

type CreditsConfig struct {
	Initial           int             `yaml:"initial"`
	UnlockCost        int             `yaml:"unlock_cost"`
	PendingTTLMinutes int             `yaml:"pending_ttl_minutes"`
	ReapIntervalMs    int             `yaml:"reap_interval_ms"`
	Packages          []CreditPackage `yaml:"packages"`
}

type PaymentsConfig struct {
	Provider            string `yaml:"provider"` // mock, stripe
	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	SuccessURL          string `yaml:"success_url"`
	CancelURL           string `yaml:"cancel_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutMs) * time.Millisecond
}

func (c *Config) AuthLeeway() time.Duration {
	return time.Duration(c.Auth.LeewaySeconds) * time.Second
}

func (c *Config) PendingPurchaseTTL() time.Duration {
	return time.Duration(c.Credits.PendingTTLMinutes) * time.Minute
}

func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Credits.ReapIntervalMs) * time.Millisecond
}

// Package looks up a configured credit package by ID.
func (c *Config) Package(id string) (CreditPackage, bool) {
	for _, p := range c.Credits.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config { return defaults() }

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			AllowedOrigins:     []string{"*"},
			RateLimitPerMinute: 120,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Auth: AuthConfig{
			LeewaySeconds: 30,
		},
		Gemini: GeminiConfig{
			Model:     "gemini-2.0-flash-exp",
			TimeoutMs: 20000,
		},
		Matching: MatchingConfig{
			DefaultTopN:               5,
			SynergyBonus:              5,
			SynergyRequestThreshold:   0.5,
			SynergyCandidateThreshold: 0.7,
			SynergyMinTags:            2,
		},
		Storage: StorageConfig{
			Region:           "auto",
			MaxSizeMB:        5,
			URLExpiryMinutes: 10,
		},
		Credits: CreditsConfig{
			Initial:           10,
			UnlockCost:        1,
			PendingTTLMinutes: 60,
			ReapIntervalMs:    60000,
			Packages: []CreditPackage{
				{ID: "starter", Credits: 10, PriceKRW: 9900},
				{ID: "standard", Credits: 30, PriceKRW: 25000},
				{ID: "pro", Credits: 100, PriceKRW: 70000},
			},
		},
		Payments: PaymentsConfig{
			Provider: "mock",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies CASTING_*
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	m := c.Matching
	if m.DefaultTopN <= 0 {
		return fmt.Errorf("matching.default_top_n must be positive, got %d", m.DefaultTopN)
	}
	if m.SynergyBonus < 0 || m.SynergyBonus > 100 {
		return fmt.Errorf("matching.synergy_bonus must be within [0,100], got %.2f", m.SynergyBonus)
	}
	for name, v := range map[string]float64{
		"synergy_request_threshold":   m.SynergyRequestThreshold,
		"synergy_candidate_threshold": m.SynergyCandidateThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("matching.%s must be within [0,1], got %.3f", name, v)
		}
	}
	if m.SynergyMinTags < 1 {
		return fmt.Errorf("matching.synergy_min_tags must be at least 1, got %d", m.SynergyMinTags)
	}
	if c.Credits.Initial < 0 {
		return fmt.Errorf("credits.initial must not be negative, got %d", c.Credits.Initial)
	}
	if c.Credits.UnlockCost < 1 {
		return fmt.Errorf("credits.unlock_cost must be at least 1, got %d", c.Credits.UnlockCost)
	}
	seen := make(map[string]bool)
	for _, p := range c.Credits.Packages {
		if p.ID == "" || p.Credits <= 0 || p.PriceKRW <= 0 {
			return fmt.Errorf("credit package %q: id, credits and price_krw are required", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate credit package %q", p.ID)
		}
		seen[p.ID] = true
	}
	switch c.Payments.Provider {
	case "mock":
	case "stripe":
		if c.Payments.StripeSecretKey == "" {
			return errors.New("payments.stripe_secret_key required for stripe provider")
		}
		// Checkout sessions must close before the reaper expires the purchase.
		if ttl := c.Credits.PendingTTLMinutes; ttl < 30 || ttl > 1440 {
			return fmt.Errorf("credits.pending_ttl_minutes must be within [30,1440] for stripe, got %d", ttl)
		}
	default:
		return fmt.Errorf("unknown payments.provider %q", c.Payments.Provider)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CASTING_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("CASTING_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("CASTING_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("CASTING_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("CASTING_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("CASTING_DATABASE_MIGRATE"); v != "" {
		cfg.Database.Migrate = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("CASTING_HERMES_URL"); ok {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("CASTING_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CASTING_GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("CASTING_GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := os.Getenv("CASTING_DEFAULT_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Matching.DefaultTopN = n
		}
	}
	if v := os.Getenv("CASTING_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("CASTING_STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("CASTING_STORAGE_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("CASTING_STORAGE_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretAccessKey = v
	}
	if v := os.Getenv("CASTING_STORAGE_PUBLIC_BASE_URL"); v != "" {
		cfg.Storage.PublicBaseURL = v
	}
	if v := os.Getenv("CASTING_PAYMENTS_PROVIDER"); v != "" {
		cfg.Payments.Provider = v
	}
	if v := os.Getenv("CASTING_STRIPE_SECRET_KEY"); v != "" {
		cfg.Payments.StripeSecretKey = v
	}
	if v := os.Getenv("CASTING_STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Payments.StripeWebhookSecret = v
	}
	if v := os.Getenv("CASTING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
