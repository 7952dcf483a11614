package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"reservas-backend/internal/config"
	"reservas-backend/internal/jobs"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/notify"
	"reservas-backend/internal/payments"
	"reservas-backend/internal/repository/postgres"
	"reservas-backend/internal/scheduler"
	"reservas-backend/internal/security"
	"reservas-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'auto-cancel', 'dispatch-outbox', 'all')")
	issueToken := flag.String("issue-token", "", "Print a service token for the named caller and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	if *issueToken != "" {
		tm := security.NewTokenManager(cfg.JWT.Secret)
		token, err := tm.GenerateServiceToken(*issueToken, []string{"scheduler"}, time.Duration(cfg.JWT.ServiceTokenExpiry)*time.Minute)
		if err != nil {
			log.Fatalf("Failed to issue service token: %v", err)
		}
		fmt.Println(token)
		return
	}

	logger.Info("Starting Reservas Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
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

	// Initialize Services
	processor := payments.NewStripeProcessor(payments.StripeOptions{
		SecretKey:         cfg.Stripe.SecretKey,
		Timeout:           time.Duration(cfg.Stripe.TimeoutSeconds) * time.Second,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
	})
	emailService := service.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.From, cfg.SendGrid.FromName, cfg.SendGrid.OpsEmail)

	cancellationService := service.NewCancellationService(
		store,
		store.ReservationRepository,
		store.PaymentRepository,
		store.OutboxRepository,
		store.ReconciliationRepository,
		processor,
		emailService,
	)

	quoteService := service.NewQuoteService(
		store,
		store.BudgetQuoteRepository,
		store.ReservationRepository,
		store.OutboxRepository,
		cfg.Reservations.PlatformFeeBps,
		cfg.QuoteTTL(),
	)

	jobServices := &jobs.Services{
		Cancellation: cancellationService,
		Quotes:       quoteService,
	}

	// Initialize event publisher
	var publisher notify.EventPublisher = notify.LogPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notify.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Error("Failed to connect to Kafka", "error", err, "brokers", cfg.Kafka.Brokers)
			log.Fatalf("Failed to connect to Kafka: %v", err)
		}
		publisher = notify.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		logger.Info("Publishing outbox events to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		logger.Warn("No Kafka brokers configured; outbox events will only be logged")
	}
	defer publisher.Close()

	// Initialize sweep lease
	var lease jobs.Lease
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		lease = jobs.NewRedisLease(rdb)
		logger.Info("Using Redis sweep lease", "addr", cfg.Redis.Addr)
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store.ReservationRepository, store.OutboxRepository, jobServices, publisher, lease, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "auto-cancel":
		jobRunner.AutoCancelPending()
	case "dispatch-outbox":
		jobRunner.DispatchOutbox()
	case "expire-quotes":
		jobRunner.ExpireQuotes()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - auto-cancel\n")
		fmt.Printf("  - dispatch-outbox\n")
		fmt.Printf("  - expire-quotes\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
