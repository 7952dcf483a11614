package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "reservas-backend/internal/api/http"
	"reservas-backend/internal/config"
	"reservas-backend/internal/jobs"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/notify"
	"reservas-backend/internal/payments"
	"reservas-backend/internal/repository/postgres"
	"reservas-backend/internal/security"
	"reservas-backend/internal/service"
	"reservas-backend/internal/timerange"
	"reservas-backend/internal/tracing"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()
	logger.Info("Starting Reservas Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Tracing
	shutdownTracing, err := tracing.Init(cfg.Tracing)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Initialize Database
	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret)
	verifier, err := security.NewFirebaseVerifier(context.Background(), cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Error("Failed to initialize identity verifier", "error", err)
		log.Fatalf("Failed to initialize identity verifier: %v", err)
	}

	// Initialize external collaborators
	processor := payments.NewStripeProcessor(payments.StripeOptions{
		SecretKey:         cfg.Stripe.SecretKey,
		Timeout:           time.Duration(cfg.Stripe.TimeoutSeconds) * time.Second,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
	})
	emailSvc := service.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.From, cfg.SendGrid.FromName, cfg.SendGrid.OpsEmail)

	// Initialize Services
	reservationSvc := service.NewReservationService(
		store,
		store.ReservationRepository,
		store.PaymentRepository,
		store.OutboxRepository,
		timerange.NewBuilder(cfg.Location(), cfg.ScheduledDuration()),
	)
	cancellationSvc := service.NewCancellationService(
		store,
		store.ReservationRepository,
		store.PaymentRepository,
		store.OutboxRepository,
		store.ReconciliationRepository,
		processor,
		emailSvc,
	)
	paymentMethodSvc := service.NewPaymentMethodService(
		store.PaymentMethodRepository,
		store.ReconciliationRepository,
		processor,
		emailSvc,
	)
	quoteSvc := service.NewQuoteService(
		store,
		store.BudgetQuoteRepository,
		store.ReservationRepository,
		store.OutboxRepository,
		cfg.Reservations.PlatformFeeBps,
		cfg.QuoteTTL(),
	)

	// The sweep endpoint shares the cron job's lease so both triggers never overlap
	var lease jobs.Lease
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		lease = jobs.NewRedisLease(rdb)
	}
	jobRunner := jobs.NewJobRunner(
		store.ReservationRepository,
		store.OutboxRepository,
		&jobs.Services{Cancellation: cancellationSvc, Quotes: quoteSvc},
		notify.LogPublisher{},
		lease,
		cfg,
	)

	// Initialize HTTP handlers
	router := httpapi.NewRouter(httpapi.Handlers{
		Reservations:   httpapi.NewReservationHandler(reservationSvc, cancellationSvc),
		PaymentMethods: httpapi.NewPaymentMethodHandler(paymentMethodSvc),
		Quotes:         httpapi.NewQuoteHandler(quoteSvc),
		Scheduler:      httpapi.NewSchedulerHandler(jobRunner),
		DB:             db,
	}, httpapi.NewAuthMiddleware(verifier, tokenManager), httpapi.NewRateLimiter(cfg.RateLimit))

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           otelhttp.NewHandler(router, cfg.Tracing.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("Tracing shutdown failed", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
