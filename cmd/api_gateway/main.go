package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/settlement-reconciliation/internal/api_gateway"
	"github.com/settlement-reconciliation/internal/api_gateway/service"
	"github.com/settlement-reconciliation/internal/config"
	"github.com/settlement-reconciliation/internal/data/mongo"
	"github.com/settlement-reconciliation/internal/data/postgres"
	"github.com/settlement-reconciliation/internal/domain/order"
	"github.com/settlement-reconciliation/internal/logger"
	"github.com/settlement-reconciliation/internal/orders"
	"github.com/settlement-reconciliation/internal/platform/messaging/producers"
	"github.com/settlement-reconciliation/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	if err = mongo.EnsureIndexes(appCtx, mongoDB.Database()); err != nil {
		log.Error("Failed to ensure MongoDB indexes", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for API Gateway (publishes to the payout topic)
	kafkaProducer, err := producers.NewPayoutReqMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize API Gateway Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	settlementRepo := mongo.NewSettlementRepository(log, mongoDB.Database())
	lineRepo := mongo.NewLineRepository(log, mongoDB.Database())
	transactionRepo := mongo.NewTransactionRepository(log, mongoDB.Database())
	reconciliationRepo := mongo.NewReconciliationRepository(log, mongoDB.Database())
	payoutRepo := mongo.NewPayoutRepository(log, mongoDB.Database())
	orderRegistry := postgres.NewOrderRepository(log, postgresDB)

	// Build the order resolver chain: remote API first (when configured),
	// local registry as fallback, cache in front of both
	var apiResolver order.Resolver
	if r := orders.NewAPIResolver(log, &cfg.Orders); r != nil {
		apiResolver = r
	}
	registryResolver := orders.NewRegistryResolver(log, orderRegistry)
	chainResolver := orders.NewChainResolver(log, apiResolver, registryResolver, orderRegistry)
	resolver := orders.NewCachedResolver(log, chainResolver, cfg.Orders.CacheTTL)

	// Initialize services
	settlementService := service.NewSettlementService(
		log,
		settlementRepo,
		lineRepo,
		transactionRepo,
		reconciliationRepo,
		resolver,
		resolver,
		cfg.WorkerPool.Size,
	)
	payoutService := service.NewPayoutService(log, payoutRepo, reconciliationRepo, settlementRepo, kafkaProducer)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, settlementService, payoutService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
