package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"github.com/tair/stock-ledger/internal/inventory"
	"github.com/tair/stock-ledger/internal/inventory/client"
	httpDelivery "github.com/tair/stock-ledger/internal/inventory/delivery/http"
	"github.com/tair/stock-ledger/internal/inventory/metrics"
	"github.com/tair/stock-ledger/internal/inventory/repository"
	"github.com/tair/stock-ledger/internal/inventory/usecase/command"
	"github.com/tair/stock-ledger/kafka"
	"github.com/tair/stock-ledger/pkg/database"
	"github.com/tair/stock-ledger/pkg/idempotency"
	"github.com/tair/stock-ledger/pkg/logger"
	"github.com/tair/stock-ledger/pkg/tracing"
)

func main() {
	// Initialize logger
	serviceName := getEnv("OTEL_SERVICE_NAME", "inventory-service")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logger.Init(serviceName, isDevelopment)

	logLevel := getEnv("LOG_LEVEL", "info")
	logger.SetLevel(logLevel)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("log_level", logLevel).
		Msg("Starting inventory service")

	// Initialize tracing
	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize tracer")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx, tp); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
		}
	}()

	// Load database configuration
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "stockledgerdb"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Connect to database
	db, err := database.NewGormConnection(dbConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Run migrations
	stockRepo := inventory.ProvideStockRepository(db)
	warehouseRepo := inventory.ProvideWarehouseRepository(db)
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	m := metrics.New()

	// Item Catalog collaborator
	catalogURL := getEnv("CATALOG_SERVICE_URL", "http://localhost:8081")
	catalog := client.NewCatalogClient(catalogURL)

	// Processed-event store: redis when configured, in-memory otherwise
	processed := newIdempotencyStore()

	// Kafka publisher for stock level change events
	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	var publisher command.EventPublisher
	kafkaPublisher, err := kafka.NewPublisher(brokers)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Kafka publisher unavailable, stock level changes will not be published")
	} else {
		publisher = kafkaPublisher
		defer kafkaPublisher.Close()
	}

	// Consumer-side use cases
	resolver := command.NewWarehouseResolver(warehouseRepo, getEnv("DEFAULT_WAREHOUSE_CODE", ""))
	receiptHandler := command.NewProcessPurchaseReceiptHandler(stockRepo, catalog, resolver, processed, publisher, m)
	saleHandler := command.NewProcessSaleCompletedHandler(stockRepo, catalog, resolver, processed, publisher, m)

	// Kafka consumer
	groupID := getEnv("KAFKA_GROUP_ID", "inventory-service")
	consumer, err := kafka.NewConsumer(brokers, groupID, []string{kafka.TopicPurchaseOrders, kafka.TopicSales})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	consumer.RegisterHandler(kafka.EventTypePurchaseOrderReceived, func(ctx context.Context, payload []byte) error {
		var event kafka.PurchaseOrderReceivedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			logger.Error(ctx).Err(err).Msg("Failed to unmarshal purchase order received event")
			return nil // malformed payloads are not retryable
		}
		return receiptHandler.Handle(ctx, event)
	})
	consumer.RegisterHandler(kafka.EventTypeSaleCompleted, func(ctx context.Context, payload []byte) error {
		var event kafka.SaleCompletedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			logger.Error(ctx).Err(err).Msg("Failed to unmarshal sale completed event")
			return nil
		}
		return saleHandler.Handle(ctx, event)
	})

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	if err := consumer.Start(consumerCtx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start Kafka consumer")
	}

	// Initialize HTTP handler with Wire DI
	handler, err := inventory.InitializeHTTPHandler(db, m)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
	}

	// Hierarchy maintenance endpoint
	warehouseHandler := httpDelivery.NewWarehouseHandler(command.NewRebuildWarehouseTreeHandler(warehouseRepo))

	// Start HTTP server
	httpPort := getEnv("HTTP_PORT", "8082")
	go startHTTPServer(handler, warehouseHandler, sqlDB, httpPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")
}

func runMigrations(db *gorm.DB) error {
	if err := repository.NewGormStockRepository(db).AutoMigrate(); err != nil {
		return err
	}
	return repository.NewGormWarehouseRepository(db).AutoMigrate()
}

// newIdempotencyStore picks redis when REDIS_ADDR is set. The memory store
// is only suitable for a single instance; duplicates across replicas need
// the shared store.
func newIdempotencyStore() idempotency.Store {
	addr := getEnv("REDIS_ADDR", "")
	if addr == "" {
		logger.Logger.Warn().Msg("REDIS_ADDR not set, using in-memory processed-event store")
		return idempotency.NewMemoryStore()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: getEnv("REDIS_PASSWORD", ""),
	})
	logger.Logger.Info().Str("addr", addr).Msg("Using redis processed-event store")
	return idempotency.NewRedisStore(rdb, 0)
}

func startHTTPServer(handler *httpDelivery.StockHandler, warehouseHandler *httpDelivery.WarehouseHandler, db *sql.DB, port string) {
	// Setup router
	router := mux.NewRouter()

	// Register routes
	handler.RegisterRoutes(router)
	warehouseHandler.RegisterRoutes(router)

	// Health check endpoint
	handler.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	logger.Logger.Info().
		Str("port", port).
		Str("metrics_endpoint", "/metrics").
		Msg("HTTP server started")

	if err := http.ListenAndServe(":"+port, c.Handler(router)); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
