// Package main is the entry point for the tillpoint API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/auth"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/ledger"
	"tillpoint/internal/domain/manufacturing"
	"tillpoint/internal/domain/promo"
	"tillpoint/internal/domain/sale"
	v1 "tillpoint/internal/infrastructure/http/v1"
	"tillpoint/internal/infrastructure/storage/postgres"
	"tillpoint/internal/infrastructure/storage/postgres/auth_repo"
	"tillpoint/internal/infrastructure/storage/postgres/catalog_repo"
	"tillpoint/internal/infrastructure/storage/postgres/document_repo"
	"tillpoint/internal/infrastructure/storage/postgres/register_repo"
	"tillpoint/internal/infrastructure/storage/postgres/report_repo"
	"tillpoint/pkg/logger"
	"tillpoint/pkg/numerator"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting tillpoint server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	if minConns := getEnvInt("DB_MIN_CONNS", 0); minConns > 0 {
		poolCfg.MinConns = int32(minConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	itemRepo := catalog_repo.NewItemRepo(txManager)
	promotionRepo := catalog_repo.NewPromotionRepo(txManager)
	processRepo := catalog_repo.NewProcessRepo(txManager)
	saleRepo := document_repo.NewSaleRepo(txManager)
	batchRepo := document_repo.NewBatchRepo(txManager)
	ledgerRepo := register_repo.NewLedgerRepo(txManager)
	operatorRepo := auth_repo.NewOperatorRepo(txManager)
	reportRepo := report_repo.NewReportRepo(txManager)

	// --- Stock ledger ---
	ledgerService := ledger.NewService(ledgerRepo, itemRepo)
	itemService := item.NewService(itemRepo, ledgerService, txManager)

	// --- Promotions ---
	promoEngine, err := promo.NewEngine(promotionRepo)
	if err != nil {
		log.Fatalw("failed to initialize promotion engine", "error", err)
	}

	// --- Document numbering ---
	// Ticket numbers are strict: a gap from an aborted checkout is fine,
	// a duplicate on a printed receipt is not. Batch numbers are internal
	// and may use cached ranges.
	numeratorService := numerator.New(pool)
	ticketNumbers := numerator.NewSequence(numeratorService, "TK", numerator.StrategyStrict)
	batchNumbers := numerator.NewSequence(numeratorService, "MB", numerator.StrategyCached)

	// --- Checkout and manufacturing ---
	orchestrator := sale.NewOrchestrator(
		itemRepo,
		ledgerService,
		saleRepo,
		promoEngine,
		ticketNumbers,
		txManager,
	)

	if rate := getEnv("CARD_COMMISSION_PERCENT", ""); rate != "" {
		percent, err := types.NewMoneyFromString(rate)
		if err != nil {
			log.Fatalw("invalid CARD_COMMISSION_PERCENT", "value", rate, "error", err)
		}
		orchestrator.SetCardCommissionRate(percent)
	}

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}
	orchestrator.SetAudit(auditService)

	executor := manufacturing.NewExecutor(
		processRepo,
		batchRepo,
		itemRepo,
		ledgerService,
		batchNumbers,
		txManager,
	)

	// --- Auth ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))
	authService := auth.NewService(operatorRepo, jwtService, auth.DefaultServiceConfig())

	// --- Terminal carts ---
	carts := sale.NewCartRegistry()

	// --- Idempotency ---
	var idempotencyStore *postgres.IdempotencyStore
	idempotencyTTL := getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	if getEnv("IDEMPOTENCY_ENABLED", "true") == "true" {
		idempotencyStore = postgres.NewIdempotencyStore(txManager, idempotencyTTL)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:             pool,
		Logger:           log,
		TokenValidator:   jwtService,
		AuthService:      authService,
		OperatorRepo:     operatorRepo,
		Carts:            carts,
		Orchestrator:     orchestrator,
		SaleRepo:         saleRepo,
		ItemService:      itemService,
		Pricer:           promoEngine,
		PromotionRepo:    promotionRepo,
		ProcessRepo:      processRepo,
		BatchRepo:        batchRepo,
		Executor:         executor,
		LedgerRepo:       ledgerRepo,
		ReportRepo:       reportRepo,
		Audit:            auditService,
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   idempotencyTTL,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
