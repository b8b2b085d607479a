package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for checkout redirects and email links)
	BaseURL string

	// CORS allowed origins (comma-separated; the browser extension id and
	// the web frontend)
	AllowedOrigins []string

	// Clerk identity provider
	ClerkIssuerURL     string // e.g. https://clerk.example.com
	ClerkWebhookSecret string // svix signing secret (whsec_...)

	// Stripe Billing Configuration
	// These are required when billing is enabled in production.
	// In development, billing handlers function as stubs if these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for the premium plan
	StripePremiumMonthlyPriceID string
	StripePremiumYearlyPriceID  string

	// Summarizer Configuration
	AIProvider       string // "deepseek" or "mock"
	DeepSeekAPIKey   string
	DeepSeekModel    string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// SMTP Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Contact form recipient
	ContactRecipient string

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Clerk
		ClerkIssuerURL:     getEnv("CLERK_ISSUER_URL", ""),
		ClerkWebhookSecret: getEnv("CLERK_WEBHOOK_SIGNING_SECRET", ""),

		// Stripe billing (optional — stubs work without these)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		// Stripe price IDs (optional — required when billing is enabled)
		StripePremiumMonthlyPriceID: getEnv("STRIPE_PREMIUM_MONTHLY_PRICE_ID", ""),
		StripePremiumYearlyPriceID:  getEnv("STRIPE_PREMIUM_YEARLY_PRICE_ID", ""),

		// Summarizer defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		DeepSeekAPIKey:   getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekModel:    getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		// SMTP defaults for Mailhog (development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "support@tildra.xyz"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Tildra Team"),

		ContactRecipient: getEnv("CONTACT_RECIPIENT", "support@tildra.xyz"),

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 1*time.Minute),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Parse allowed origins from comma-separated environment variable
	originsStr := getEnv("ALLOWED_ORIGINS", "")
	if originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Clerk issuer is required: without it no caller can authenticate
	if cfg.ClerkIssuerURL == "" {
		return nil, fmt.Errorf("CLERK_ISSUER_URL is required")
	}
	if !strings.HasPrefix(cfg.ClerkIssuerURL, "https://") && cfg.Env != "development" {
		return nil, fmt.Errorf("CLERK_ISSUER_URL must be a valid HTTPS URL, got: %s", cfg.ClerkIssuerURL)
	}

	// Validate summarizer configuration
	if cfg.AIProvider == "deepseek" {
		if cfg.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY is required when AI_PROVIDER is 'deepseek'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'deepseek' or 'mock', got: %s", cfg.AIProvider)
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

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
