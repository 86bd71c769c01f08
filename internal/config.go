package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (checkout return links)
	BaseURL string

	// Usage metering
	UsageBackend     string        // "postgres" or "redis"
	RedisURL         string        // required when UsageBackend is "redis"
	RedisRetention   time.Duration // how long past months stay in Redis
	PlanCatalogPath  string        // optional YAML plan table; built-in defaults otherwise
	UsageWarnPercent int           // usage summary "nearing limit" threshold

	// Session verification. At least one of secret or JWKS URL is required.
	AuthJWTSecret string
	AuthJWKSURL   string
	AuthIssuer    string
	AuthAudience  string

	// Burst limit on metered routes, per account
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Stripe Billing Configuration
	// Without a secret key every account resolves to the free plan and the
	// billing endpoints return 501.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for the built-in plan table. Ignored when
	// PlanCatalogPath is set.
	StripeBasicMonthlyPriceID        string
	StripeBasicYearlyPriceID         string
	StripeProfessionalMonthlyPriceID string
	StripeProfessionalYearlyPriceID  string
	StripePremiumMonthlyPriceID      string
	StripePremiumYearlyPriceID       string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// AI Provider Configuration
	AIProvider       string // "openai" or "mock"
	OpenAIAPIKey     string
	OpenAIImageModel string
	AIRequestTimeout time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// IsProduction reports whether the service runs with production defaults
// (JSON logs, HSTS).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		UsageBackend:     getEnv("USAGE_BACKEND", "postgres"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisRetention:   getEnvDuration("REDIS_USAGE_RETENTION", 90*24*time.Hour),
		PlanCatalogPath:  getEnv("PLAN_CATALOG_PATH", ""),
		UsageWarnPercent: getEnvInt("USAGE_WARN_PERCENT", 70),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		AuthJWKSURL:   getEnv("AUTH_JWKS_URL", ""),
		AuthIssuer:    getEnv("AUTH_ISSUER", ""),
		AuthAudience:  getEnv("AUTH_AUDIENCE", ""),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		// Stripe billing (optional)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripeBasicMonthlyPriceID:        getEnv("STRIPE_BASIC_MONTHLY_PRICE_ID", ""),
		StripeBasicYearlyPriceID:         getEnv("STRIPE_BASIC_YEARLY_PRICE_ID", ""),
		StripeProfessionalMonthlyPriceID: getEnv("STRIPE_PROFESSIONAL_MONTHLY_PRICE_ID", ""),
		StripeProfessionalYearlyPriceID:  getEnv("STRIPE_PROFESSIONAL_YEARLY_PRICE_ID", ""),
		StripePremiumMonthlyPriceID:      getEnv("STRIPE_PREMIUM_MONTHLY_PRICE_ID", ""),
		StripePremiumYearlyPriceID:       getEnv("STRIPE_PREMIUM_YEARLY_PRICE_ID", ""),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIImageModel: getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 90*time.Second),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AuthJWTSecret == "" && cfg.AuthJWKSURL == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET or AUTH_JWKS_URL is required")
	}

	// Validate usage backend
	switch cfg.UsageBackend {
	case "postgres":
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when USAGE_BACKEND is 'redis'")
		}
	default:
		return nil, fmt.Errorf("USAGE_BACKEND must be either 'postgres' or 'redis', got: %s", cfg.UsageBackend)
	}

	if cfg.UsageWarnPercent < 1 || cfg.UsageWarnPercent > 100 {
		return nil, fmt.Errorf("USAGE_WARN_PERCENT must be between 1 and 100, got: %d", cfg.UsageWarnPercent)
	}

	if cfg.RateLimitRequests < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got: %d", cfg.RateLimitRequests)
	}

	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "openai" {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is 'openai'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'openai' or 'mock', got: %s", cfg.AIProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
