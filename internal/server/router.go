package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/journeylens-backend/internal/handlers"
	"github.com/yungbote/journeylens-backend/internal/middleware"
)

type RouterConfig struct {
	EventHandler      *handlers.EventHandler
	AnalyticsHandler  *handlers.AnalyticsHandler
	PredictionHandler *handlers.PredictionHandler
	AuthMiddleware    *middleware.AuthMiddleware
	AuthEnabled       bool
	AllowOrigins      []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/v1")
	if cfg.AuthEnabled && cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Ingest
	api.POST("/events", cfg.EventHandler.PostEvent)
	api.POST("/events/batch", cfg.EventHandler.PostEventBatch)

	// Analytics
	api.GET("/analytics/insights/:userId", cfg.AnalyticsHandler.GetInsights)
	api.GET("/analytics/events/:userId", cfg.AnalyticsHandler.GetEvents)
	api.GET("/analytics/struggles/:userId", cfg.AnalyticsHandler.GetStruggles)
	api.GET("/analytics/dashboard", cfg.AnalyticsHandler.GetDashboard)

	// Predictions
	api.GET("/predictions/exit-risk/:userId", cfg.PredictionHandler.GetExitRisk)
	api.GET("/predictions/model-health", cfg.PredictionHandler.GetModelHealth)

	return router
}
