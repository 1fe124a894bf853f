// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/domain/auth"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/ledger"
	"tillpoint/internal/domain/manufacturing"
	"tillpoint/internal/domain/promo"
	"tillpoint/internal/domain/reports"
	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/http/v1/handlers"
	"tillpoint/internal/infrastructure/http/v1/middleware"
	"tillpoint/internal/infrastructure/storage/postgres"
	"tillpoint/pkg/logger"
)

// RouterConfig holds everything the HTTP layer depends on.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator for session token validation
	TokenValidator middleware.TokenValidator

	// AuthService for operator authentication endpoints
	AuthService  *auth.Service
	OperatorRepo auth.Repository

	// Terminal cart and checkout
	Carts        *sale.CartRegistry
	Orchestrator *sale.Orchestrator
	SaleRepo     sale.Repository

	// Catalogs and pricing
	ItemService   *item.Service
	Pricer        sale.Pricer
	PromotionRepo promo.Repository

	// Manufacturing
	ProcessRepo manufacturing.ProcessRepository
	BatchRepo   manufacturing.BatchRepository
	Executor    *manufacturing.Executor

	// Reads
	LedgerRepo ledger.Repository
	ReportRepo reports.Repository
	Audit      *postgres.AuditService

	// IdempotencyStore enables replay protection for mutating operations
	// when set
	IdempotencyStore *postgres.IdempotencyStore
	IdempotencyTTL   time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService, cfg.OperatorRepo)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Public auth endpoints (PIN login needs no session)
		authHandler.RegisterPublicRoutes(v1.Group("/auth"))

		// Everything else runs behind an operator session.
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.TokenValidator))

		// Replay protection for mutating operations
		if cfg.IdempotencyStore != nil {
			protected.Use(middleware.Idempotency(cfg.IdempotencyStore))
		}

		authHandler.RegisterProtectedRoutes(protected.Group("/auth"))

		itemHandler := handlers.NewItemHandler(baseHandler, cfg.ItemService)
		itemHandler.RegisterRoutes(protected.Group("/items"))

		cartHandler := handlers.NewCartHandler(
			baseHandler,
			cfg.Carts,
			cfg.ItemService,
			cfg.Pricer,
			cfg.AuthService,
			cfg.Orchestrator,
			cfg.SaleRepo,
		)
		cartHandler.RegisterCartRoutes(protected.Group("/cart"))
		cartHandler.RegisterSaleRoutes(protected.Group("/sales"))

		promotionHandler := handlers.NewPromotionHandler(baseHandler, cfg.PromotionRepo)
		promotions := protected.Group("/promotions")
		promotions.Use(middleware.RequireRole(auth.RoleSupervisor, auth.RoleManager))
		promotionHandler.RegisterRoutes(promotions)

		manufacturingHandler := handlers.NewManufacturingHandler(baseHandler, cfg.ProcessRepo, cfg.BatchRepo, cfg.Executor)
		manufacturingHandler.RegisterRoutes(protected.Group("/manufacturing"))

		ledgerHandler := handlers.NewLedgerHandler(baseHandler, cfg.LedgerRepo)
		ledgerHandler.RegisterRoutes(protected.Group("/ledger"))

		reportsHandler := handlers.NewReportsHandler(baseHandler, cfg.ReportRepo, cfg.Audit)
		reportsGroup := protected.Group("/reports")
		reportsGroup.Use(middleware.RequireRole(auth.RoleSupervisor, auth.RoleManager))
		reportsHandler.RegisterRoutes(reportsGroup)
	}

	return router
}
