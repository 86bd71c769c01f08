package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/dentalab/internal/ai"
	"github.com/DukeRupert/dentalab/internal/ai/mock"
	"github.com/DukeRupert/dentalab/internal/ai/openai"
	"github.com/DukeRupert/dentalab/internal/auth"
	"github.com/DukeRupert/dentalab/internal/billing"
	"github.com/DukeRupert/dentalab/internal/catalog"
	"github.com/DukeRupert/dentalab/internal/handler"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/DukeRupert/dentalab/internal/middleware"
	"github.com/DukeRupert/dentalab/internal/report"
	"github.com/DukeRupert/dentalab/internal/repository"
	"github.com/DukeRupert/dentalab/internal/service"
	"github.com/DukeRupert/dentalab/internal/storage"
	"github.com/DukeRupert/dentalab/internal/usage"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
)

// App holds the wired dependencies shared by the HTTP server and the Lambda
// entry point.
type App struct {
	cfg     *Config
	logger  *slog.Logger
	db      *sql.DB
	redis   *usage.RedisCounter
	limiter *middleware.RateLimiter
	handler http.Handler
}

// NewApp connects to the database and counter backend, runs migrations and
// builds the HTTP handler. Close releases the connections.
func NewApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	app := &App{cfg: cfg, logger: logger, db: db}
	if err := app.build(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run performs background housekeeping until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	a.limiter.Run(ctx)
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	queries := repository.New(a.db)

	// ==========================================================================
	// Metering core
	// ==========================================================================

	plans, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	counter, err := a.newCounter(ctx, queries)
	if err != nil {
		return err
	}

	var billingSvc billing.Service
	if cfg.StripeSecretKey != "" {
		billingSvc = billing.NewStripeService(billing.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		})
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, every account resolves to the free plan")
	}

	accounts := service.NewAccountService(queries, logger)
	subscriptions := service.NewSubscriptionService(accounts, billingSvc, plans, service.SubscriptionServiceConfig{}, logger)
	entitlements := service.NewEntitlementService(subscriptions, counter, service.EntitlementConfig{
		WarnPercent: cfg.UsageWarnPercent,
	}, logger)
	metering := service.NewMeteringService(entitlements, counter, service.MeteringConfig{}, logger)

	// ==========================================================================
	// Metered actions
	// ==========================================================================

	store, err := storage.New(storage.Config{
		Provider: cfg.StorageProvider,
		Local: storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		},
		R2: storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	generator, err := newImageGenerator(cfg, logger)
	if err != nil {
		return err
	}

	images := service.NewImageService(metering, generator, store, service.NewImagingProcessor(), logger)
	documents := service.NewDocumentService(metering, report.NewPDFGenerator(), store, logger)
	billingFlows := service.NewBillingService(billingSvc, accounts, plans, cfg.BaseURL, logger)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.AuthJWTSecret,
		JWKSURL:  cfg.AuthJWKSURL,
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
	})
	if err != nil {
		return fmt.Errorf("session verifier initialization failed: %w", err)
	}

	authMw := middleware.NewAuthMiddleware(verifier, accounts, logger)
	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	rateLimitMw := middleware.NewRateLimitMiddleware(a.limiter, logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	securityMw := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)

	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set, /metrics is unprotected")
	}

	// ==========================================================================
	// Routes
	// ==========================================================================

	mux := http.NewServeMux()

	checks := map[string]handler.Pinger{"database": a.db}
	if a.redis != nil {
		checks["redis"] = handler.PingFunc(a.redis.Ping)
	}
	handler.NewHealthHandler(checks, logger).RegisterRoutes(mux)

	mux.Handle("GET /metrics", metricsAuthMw.MetricsHandler(prometheus.DefaultGatherer))

	if cfg.StorageProvider == storage.ProviderLocal {
		files := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", files))
	}

	requireAccount := authMw.RequireAccount
	requireMetered := middleware.Stack(authMw.RequireAccount, rateLimitMw.Limit)

	handler.NewUsageHandler(subscriptions, entitlements, logger).RegisterRoutes(mux, requireAccount)
	handler.NewGenerateHandler(images, documents, logger).RegisterRoutes(mux, requireMetered)
	handler.NewBillingHandler(billingFlows, logger).RegisterRoutes(mux, requireAccount)

	a.handler = middleware.Stack(
		metrics.Middleware,
		loggingMw.Handler,
		securityMw.Handler,
	)(mux)

	logger.Info("Application ready",
		"usage_backend", cfg.UsageBackend,
		"storage", cfg.StorageProvider,
		"ai_provider", cfg.AIProvider,
		"plans", len(plans.Plans()),
	)
	return nil
}

func loadCatalog(cfg *Config) (*catalog.Catalog, error) {
	if cfg.PlanCatalogPath != "" {
		plans, err := catalog.Load(cfg.PlanCatalogPath)
		if err != nil {
			return nil, fmt.Errorf("plan catalog: %w", err)
		}
		return plans, nil
	}

	plans, err := catalog.Default(catalog.DefaultPriceIDs{
		BasicMonthly:        cfg.StripeBasicMonthlyPriceID,
		BasicYearly:         cfg.StripeBasicYearlyPriceID,
		ProfessionalMonthly: cfg.StripeProfessionalMonthlyPriceID,
		ProfessionalYearly:  cfg.StripeProfessionalYearlyPriceID,
		PremiumMonthly:      cfg.StripePremiumMonthlyPriceID,
		PremiumYearly:       cfg.StripePremiumYearlyPriceID,
	})
	if err != nil {
		return nil, fmt.Errorf("plan catalog: %w", err)
	}
	return plans, nil
}

func (a *App) newCounter(ctx context.Context, queries *repository.Queries) (usage.Counter, error) {
	switch a.cfg.UsageBackend {
	case usage.BackendRedis:
		rc, err := usage.NewRedisCounter(ctx, usage.RedisConfig{
			URL:       a.cfg.RedisURL,
			Retention: a.cfg.RedisRetention,
		})
		if err != nil {
			return nil, fmt.Errorf("redis counter: %w", err)
		}
		a.redis = rc
		return rc, nil
	default:
		return usage.NewPostgresCounter(queries), nil
	}
}

func newImageGenerator(cfg *Config, logger *slog.Logger) (ai.ImageGenerator, error) {
	if cfg.AIProvider == "openai" {
		p, err := openai.New(openai.Config{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIImageModel,
			ProviderConfig: ai.ProviderConfig{
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		return p, nil
	}

	logger.Warn("Using mock image generator")
	return mock.New(logger), nil
}
