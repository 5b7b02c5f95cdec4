package api

import (
	"context"
	"log"

	"github.com/Conceptual-Machines/abc-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/abc-api/internal/api/middleware"
	"github.com/Conceptual-Machines/abc-api/internal/config"
	"github.com/Conceptual-Machines/abc-api/internal/metrics"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, cfg *config.Config, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking())

	// CORS middleware
	router.Use(apimiddleware.CORS())

	// CloudWatch metrics (disabled outside production)
	cwMetrics, err := metrics.NewClient(context.Background(), cfg.Environment)
	if err != nil {
		log.Printf("⚠️  CloudWatch metrics unavailable: %v", err)
	}

	// Health check
	healthHandler := handlers.NewHealthHandler(db)
	router.GET("/health", healthHandler.HealthCheck)

	// Runtime metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	v1 := router.Group("/api/v1")
	{
		// Stateless parse endpoint
		parseHandler := handlers.NewParseHandler(cfg, db, cwMetrics)
		v1.POST("/parse", parseHandler.Parse)

		// Stored tune books with lazy per-tune extraction
		tuneBookHandler := handlers.NewTuneBookHandler(cfg, db)
		v1.POST("/tunebooks", tuneBookHandler.Create)
		v1.GET("/tunebooks", tuneBookHandler.List)
		v1.GET("/tunebooks/:id", tuneBookHandler.Get)
		v1.GET("/tunebooks/:id/tunes", tuneBookHandler.ListTunes)
		v1.GET("/tunebooks/:id/tunes/:ref", tuneBookHandler.GetTune)
	}

	return router
}
