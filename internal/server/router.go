// Package server assembles the HTTP application from the service registry.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"budgetledger/internal/config"
	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/handlers"
	"budgetledger/internal/middleware"
	"budgetledger/internal/services"

	_ "budgetledger/internal/docs" // Import swagger docs
)

// App is the routed application plus the components with a lifecycle.
type App struct {
	Router        *gin.Engine
	ImportLimiter *middleware.RateLimiter
}

// New builds the router. Call Close when the server stops.
func New(cfg *config.Config, reg *services.Registry) *App {
	authHandler := handlers.NewAuthHandler(reg.Users, reg.Audit)
	categoryHandler := handlers.NewCategoryHandler(reg.Categories, reg.Audit)
	transactionHandler := handlers.NewTransactionHandler(reg.Transactions)
	summaryHandler := handlers.NewSummaryHandler(reg.Summaries, reg.Audit)
	stagingHandler := handlers.NewStagingHandler(reg.Staging, reg.Commits, cfg.ImportMaxBytes)
	opsHandler := handlers.NewOpsHandler(reg.Staging)
	auditHandler := handlers.NewAuditHandler(reg.Audit)

	importLimiter := middleware.NewRateLimiter(cfg.ImportRateLimitPerMin)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": apperrors.ErrNotFound})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Operator routes
	ops := v1.Group("/ops")
	ops.Use(middleware.OperatorAuthMiddleware(cfg.OperatorAPIKey))
	ops.POST("/staging/purge", opsHandler.PurgeExpired)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	summaries := protected.Group("/summaries")
	summaries.GET("", summaryHandler.ListSummaries)
	summaries.GET("/:month", summaryHandler.GetMonthlySummary)
	summaries.POST("/:month/recompute", summaryHandler.RecomputeSummary)

	imports := protected.Group("/imports")
	imports.POST("", importLimiter.Middleware(), stagingHandler.Import)
	imports.GET("/pending", stagingHandler.ListPending)
	imports.GET("/pending/:id", stagingHandler.GetPending)
	imports.PUT("/pending/:id", stagingHandler.UpdatePending)
	imports.DELETE("/pending/:id", stagingHandler.RejectPending)
	imports.POST("/commit", stagingHandler.Commit)

	protected.GET("/audit", auditHandler.ListAuditLogs)

	return &App{Router: router, ImportLimiter: importLimiter}
}

// Close stops background work started by New.
func (a *App) Close() {
	a.ImportLimiter.Stop()
}
