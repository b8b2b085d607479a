package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tildra/tildra/internal"
	"github.com/tildra/tildra/internal/ai"
	"github.com/tildra/tildra/internal/ai/deepseek"
	"github.com/tildra/tildra/internal/ai/mock"
	"github.com/tildra/tildra/internal/billing"
	"github.com/tildra/tildra/internal/email"
	"github.com/tildra/tildra/internal/handler"
	"github.com/tildra/tildra/internal/identity"
	"github.com/tildra/tildra/internal/jobs"
	"github.com/tildra/tildra/internal/metrics"
	"github.com/tildra/tildra/internal/middleware"
	"github.com/tildra/tildra/internal/repository"
	"github.com/tildra/tildra/internal/service"
	"github.com/tildra/tildra/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize identity verification (Clerk)
	verifier, err := identity.NewVerifier(ctx, cfg.ClerkIssuerURL)
	if err != nil {
		return fmt.Errorf("identity verifier initialization failed: %w", err)
	}
	clerkWebhooks, err := identity.NewWebhookVerifier(cfg.ClerkWebhookSecret)
	if err != nil {
		return fmt.Errorf("clerk webhook verifier initialization failed: %w", err)
	}

	// Initialize billing (Stripe)
	stripeSvc := billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
		PremiumMonthlyPriceID: cfg.StripePremiumMonthlyPriceID,
		PremiumYearlyPriceID:  cfg.StripePremiumYearlyPriceID,
	})

	// Initialize summarization provider
	summarizer, err := newSummarizer(cfg, logger)
	if err != nil {
		return fmt.Errorf("summarizer initialization failed: %w", err)
	}
	logger.Info("Summarizer ready", "provider", cfg.AIProvider)

	// Initialize email service
	emailService, err := email.NewSMTPEmailService(
		email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		},
		cfg.BaseURL,
		cfg.ContactRecipient,
		"web/templates/email",
		logger,
	)
	if err != nil {
		return fmt.Errorf("email service initialization failed: %w", err)
	}

	// Initialize services
	quotaService := service.NewQuotaService(repo, logger)
	userService := service.NewUserService(repo, logger)
	billingService := service.NewBillingService(repo, stripeSvc, logger)
	summaryService := service.NewSummaryService(repo, quotaService, summarizer, logger)

	// Initialize background worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		w, err := worker.New(db, repo, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewSendWelcomeEmailHandler(emailService, logger))
		w.Register(jobs.NewSendContactEmailHandler(emailService, logger))
		w.Start(ctx)
		defer w.Stop()
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(verifier, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	corsMw := middleware.NewCORSMiddleware(cfg.AllowedOrigins)
	contactLimiter := middleware.NewRateLimitMiddleware(
		middleware.NewRateLimiter(5, time.Hour, logger), logger)

	// Initialize handlers
	summarizeHandler := handler.NewSummarizeHandler(summaryService, logger)
	accountHandler := handler.NewAccountHandler(userService, quotaService, logger)
	historyHandler := handler.NewHistoryHandler(summaryService, logger)
	billingHandler := handler.NewBillingHandler(billingService, cfg.BaseURL, logger)
	contactHandler := handler.NewContactHandler(repo, logger)
	stripeWebhookHandler := handler.NewStripeWebhookHandler(stripeSvc, billingService, logger)
	clerkWebhookHandler := handler.NewClerkWebhookHandler(clerkWebhooks, userService, repo, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics (basic auth when credentials are configured)
	mux.Handle("GET /metrics", metricsAuth(cfg.MetricsUsername, cfg.MetricsPassword, promhttp.Handler()))

	// Webhook routes (public - authenticated by signature)
	stripeWebhookHandler.RegisterRoutes(mux)
	clerkWebhookHandler.RegisterRoutes(mux)

	// Contact form (public, rate limited)
	mux.Handle("POST /api/contact", contactLimiter.Limit(http.HandlerFunc(contactHandler.HandleContact)))

	// Authenticated API routes
	apiMux := http.NewServeMux()
	summarizeHandler.RegisterRoutes(apiMux)
	accountHandler.RegisterRoutes(apiMux)
	historyHandler.RegisterRoutes(apiMux)
	billingHandler.RegisterRoutes(apiMux)
	mux.Handle("/api/", authMw.RequireAuth(apiMux))

	// Global middleware stack
	root := middleware.Stack(
		securityMw.Handler,
		corsMw.Handler,
		metrics.Middleware,
		loggingMw.Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newSummarizer builds the configured summarization provider.
func newSummarizer(cfg *internal.Config, logger *slog.Logger) (ai.Summarizer, error) {
	providerCfg := ai.ProviderConfig{
		MaxRetries:     cfg.AIMaxRetries,
		RetryBaseDelay: cfg.AIRetryBaseDelay,
		RequestTimeout: cfg.AIRequestTimeout,
	}

	switch cfg.AIProvider {
	case "deepseek":
		return deepseek.New(deepseek.Config{
			APIKey:         cfg.DeepSeekAPIKey,
			Model:          cfg.DeepSeekModel,
			ProviderConfig: providerCfg,
		}, logger)
	default:
		return mock.New(logger), nil
	}
}

// metricsAuth guards the metrics endpoint with basic auth. When no
// credentials are configured the handler is served as-is.
func metricsAuth(username, password string, next http.Handler) http.Handler {
	if username == "" && password == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
