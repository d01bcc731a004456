package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/journeylens-backend/internal/clients/redis"
	"github.com/yungbote/journeylens-backend/internal/clients/riskmodel"
	"github.com/yungbote/journeylens-backend/internal/clients/textanalysis"
	"github.com/yungbote/journeylens-backend/internal/db"
	"github.com/yungbote/journeylens-backend/internal/handlers"
	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/middleware"
	"github.com/yungbote/journeylens-backend/internal/observability"
	"github.com/yungbote/journeylens-backend/internal/repos"
	"github.com/yungbote/journeylens-backend/internal/server"
	"github.com/yungbote/journeylens-backend/internal/services"
	"github.com/yungbote/journeylens-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	authEnabled := utils.GetEnvAsBool("AUTH_ENABLED", false, log)

	// Metrics
	metrics := observability.NewMetrics(log)
	metricsAddr := utils.GetEnv("METRICS_ADDR", "", log)
	metrics.StartServer(context.Background(), log, metricsAddr)

	// Postgres
	var userEventRepo repos.UserEventRepo
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Warn("Postgres init failed, event archive disabled", "error", err)
	} else {
		if err = postgresService.AutoMigrateAll(); err != nil {
			log.Warn("Postgres auto migration failed", "error", err)
		}
		log.Info("Setting up Repos from main...")
		userEventRepo = repos.NewUserEventRepo(postgresService.DB(), log)
	}

	// Redis
	var publisher services.StreamPublisher
	var predictionCache services.PredictionCache = services.NewMemoryPredictionCache()
	redisClient, err := redis.NewClient(log)
	if err != nil {
		log.Warn("Redis init failed, stream publishing disabled", "error", err)
	} else {
		publisher = redis.NewEventBus(redisClient, log)
		if utils.GetEnvAsBool("PREDICTION_CACHE_REDIS", false, log) {
			predictionCache = redis.NewPredictionCache(redisClient, log)
		}
	}

	// AI clients
	var modelClient services.RiskModelClient
	if client := riskmodel.NewClient(log); client != nil {
		modelClient = client
	}
	var textClient services.TextAnalysisClient
	if client := textanalysis.NewClient(log); client != nil {
		textClient = client
	}

	// Services
	log.Info("Setting up Services from main...")
	historyService := services.NewHistoryService()
	insightsService := services.NewInsightsService()
	enrichmentService := services.NewEnrichmentService(log)
	struggleService := services.NewStruggleService(log)
	aggregationService := services.NewAggregationService(log)
	featureService := services.NewFeatureService(log)
	riskService := services.NewRiskService(
		historyService,
		insightsService,
		featureService,
		modelClient,
		predictionCache,
		metrics,
		log,
	)
	collectionService := services.NewCollectionService(
		historyService,
		insightsService,
		enrichmentService,
		struggleService,
		aggregationService,
		riskService,
		userEventRepo,
		publisher,
		textClient,
		metrics,
		log,
	)
	authService := services.NewAuthService(jwtSecretKey, log)

	// Handlers
	log.Info("Setting up handlers from main...")
	eventHandler := handlers.NewEventHandler(collectionService, log)
	analyticsHandler := handlers.NewAnalyticsHandler(collectionService, log)
	predictionHandler := handlers.NewPredictionHandler(riskService, log)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	var allowOrigins []string
	if raw := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log); raw != "" {
		allowOrigins = strings.Split(raw, ",")
	}
	router := server.NewRouter(server.RouterConfig{
		EventHandler:      eventHandler,
		AnalyticsHandler:  analyticsHandler,
		PredictionHandler: predictionHandler,
		AuthMiddleware:    authMiddleware,
		AuthEnabled:       authEnabled,
		AllowOrigins:      allowOrigins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
