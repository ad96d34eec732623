package main

import (
	"database/sql"
	"flag"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	httpapi "fulfilment-backend/internal/api/http"
	"fulfilment-backend/internal/authz"
	"fulfilment-backend/internal/config"
	"fulfilment-backend/internal/eventstore"
	"fulfilment-backend/internal/logger"
	"fulfilment-backend/internal/repository/postgres"
	"fulfilment-backend/internal/security"
	"fulfilment-backend/internal/service"
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
	logger.Info("Starting Fulfilment Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
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
	authorizer := authz.NewAuthorizer(store.RelationRepository)

	// Initialize Event Store
	events := eventstore.NewStore(store.EventRepository, store.SnapshotRepository, store)

	// Initialize Services
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

	// Set up HTTP server
	router := mux.NewRouter()
	handler := httpapi.NewHandler(fulfilmentSvc, tokenManager)
	handler.RegisterRoutes(router)

	logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
	if err := http.ListenAndServe(cfg.GetServerAddress(), router); err != nil {
		logger.Error("HTTP server error", "error", err)
		log.Fatalf("Failed to serve: %v", err)
	}
}
