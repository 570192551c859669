package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MikeSquared-Agency/Casting/internal/accounts"
	"github.com/MikeSquared-Agency/Casting/internal/analysis"
	"github.com/MikeSquared-Agency/Casting/internal/api"
	"github.com/MikeSquared-Agency/Casting/internal/auth"
	"github.com/MikeSquared-Agency/Casting/internal/casting"
	"github.com/MikeSquared-Agency/Casting/internal/chat"
	"github.com/MikeSquared-Agency/Casting/internal/config"
	"github.com/MikeSquared-Agency/Casting/internal/credits"
	"github.com/MikeSquared-Agency/Casting/internal/hermes"
	"github.com/MikeSquared-Agency/Casting/internal/matching"
	"github.com/MikeSquared-Agency/Casting/internal/metrics"
	"github.com/MikeSquared-Agency/Casting/internal/payment"
	"github.com/MikeSquared-Agency/Casting/internal/storage"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

func main() {
	configPath := flag.String("config", "casting.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
			logger.Info("database schema applied")
		}
		db = pg
		logger.Info("connected to database")
	} else {
		db = store.NewMemoryStore()
		logger.Warn("no database configured, using in-memory store")
	}
	defer db.Close()

	// Hermes (optional)
	var hermesClient hermes.Client = hermes.NoopClient{}
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Metrics
	m := metrics.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := m.Register(reg); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Analysis
	var analyzer analysis.Analyzer = analysis.KeywordAnalyzer{}
	if cfg.Gemini.APIKey != "" {
		g, err := analysis.NewGeminiAnalyzer(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.GeminiTimeout())
		if err != nil {
			logger.Warn("gemini unavailable, using keyword analysis", "error", err)
		} else {
			analyzer = &analysis.FallbackAnalyzer{
				Primary:   g,
				Secondary: analysis.KeywordAnalyzer{},
				Metrics:   m,
				Logger:    logger,
			}
			logger.Info("gemini analyzer enabled", "model", cfg.Gemini.Model)
		}
	} else {
		logger.Warn("no gemini api key, using keyword analysis")
	}

	engine := matching.NewEngine(matching.Options{
		DefaultTopN:               cfg.Matching.DefaultTopN,
		SynergyBonus:              cfg.Matching.SynergyBonus,
		SynergyRequestThreshold:   cfg.Matching.SynergyRequestThreshold,
		SynergyCandidateThreshold: cfg.Matching.SynergyCandidateThreshold,
		SynergyMinTags:            cfg.Matching.SynergyMinTags,
	}, logger)

	// Payments
	var provider payment.Provider = payment.MockProvider{}
	if cfg.Payments.Provider == "stripe" {
		provider = payment.NewStripeProvider(payment.StripeConfig{
			SecretKey:     cfg.Payments.StripeSecretKey,
			WebhookSecret: cfg.Payments.StripeWebhookSecret,
			SuccessURL:    cfg.Payments.SuccessURL,
			CancelURL:     cfg.Payments.CancelURL,
			SessionTTL:    cfg.PendingPurchaseTTL(),
		})
	}
	logger.Info("payment provider ready", "provider", provider.Name())

	// Uploads (optional)
	var uploads *storage.Service
	if cfg.Storage.Bucket != "" {
		uploads, err = storage.NewService(storage.Config{
			Bucket:           cfg.Storage.Bucket,
			Endpoint:         cfg.Storage.Endpoint,
			Region:           cfg.Storage.Region,
			AccessKeyID:      cfg.Storage.AccessKeyID,
			SecretAccessKey:  cfg.Storage.SecretAccessKey,
			PublicBaseURL:    cfg.Storage.PublicBaseURL,
			MaxSizeMB:        cfg.Storage.MaxSizeMB,
			URLExpiryMinutes: cfg.Storage.URLExpiryMinutes,
		})
		if err != nil {
			logger.Warn("uploads disabled", "error", err)
			uploads = nil
		}
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty, authenticated routes will reject every token")
	}

	// Services
	creditSvc := credits.NewService(db, provider, hermesClient, m, cfg, logger)
	creditSvc.Start(ctx)
	defer creditSvc.Stop()
	logger.Info("purchase reaper started", "interval", cfg.ReapInterval(), "ttl", cfg.PendingPurchaseTTL())

	chatSvc := chat.NewService(db, chat.NewHub(), hermesClient, m, logger)
	if err := chatSvc.StartBridge(); err != nil {
		logger.Warn("chat bridge unavailable, realtime delivery is local only", "error", err)
	}

	// API server
	router := api.NewRouter(api.Deps{
		Accounts: accounts.NewService(db, hermesClient, cfg.Credits.Initial, logger),
		Casting:  casting.NewService(db, analyzer, engine, hermesClient, m, logger),
		Credits:  creditSvc,
		Chat:     chatSvc,
		Uploads:  uploads,
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret, cfg.AuthLeeway()),
		Metrics:  m,
		Server:   cfg.Server,
		Logger:   logger,
	})
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
