package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"fulfilment-backend/internal/authz"
	"fulfilment-backend/internal/config"
	"fulfilment-backend/internal/eventstore"
	"fulfilment-backend/internal/jobs"
	"fulfilment-backend/internal/logger"
	"fulfilment-backend/internal/repository/postgres"
	"fulfilment-backend/internal/scheduler"
	"fulfilment-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'nightly-rental-charges', 'poll-scheduled-jobs', 'all-nightly')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Fulfilment Cronjob Runner...", "log_level", cfg.Log.Level)

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
	authorizer := authz.NewAuthorizer(store.RelationRepository)
	events := eventstore.NewStore(store.EventRepository, store.SnapshotRepository, store)
	fulfilmentSvc := service.NewFulfilmentService(
		events,
		store.SnapshotRepository,
		store.ChargeRepository,
		store.SalesOrderRepository,
		store.PriceRepository,
		store.InventoryRepository,
		store.ScheduledJobRepository,
		authorizer,
		store,
		cfg.Billing.AutomatedChargingThresholdDays,
	)

	jobServices := &jobs.Services{
		Fulfilment: fulfilmentSvc,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(db, store, jobServices, cfg)

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
	case "nightly-rental-charges":
		jobRunner.NightlyRentalCharges()
	case "poll-scheduled-jobs":
		jobRunner.PollScheduledJobs()
	case "all-nightly":
		jobRunner.RunAllNightlyJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - nightly-rental-charges\n")
		fmt.Printf("  - poll-scheduled-jobs\n")
		fmt.Printf("  - all-nightly\n")
		os.Exit(1)
	}
}
