package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ardn-app/ardn-api/api/swagger"
	"github.com/ardn-app/ardn-api/internal/handler"
	"github.com/ardn-app/ardn-api/internal/middleware"
	"github.com/ardn-app/ardn-api/internal/models"
	"github.com/ardn-app/ardn-api/internal/repository"
	"github.com/ardn-app/ardn-api/internal/service"
	"github.com/ardn-app/ardn-api/pkg/cache"
	"github.com/ardn-app/ardn-api/pkg/config"
	"github.com/ardn-app/ardn-api/pkg/database"
	"github.com/ardn-app/ardn-api/pkg/logger"
	corsmiddleware "github.com/ardn-app/ardn-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ardn-app/ardn-api/pkg/middleware/requestid"
)

// @title ARDN API
// @version 1.0.0
// @description Multi-tenant student participation and point tracking
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisConn, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API runs without Redis; reports just skip the cache.
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisConn = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	programRepo := repository.NewProgramRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	participationRepo := repository.NewParticipationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisConn, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled && redisConn != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	programSvc := service.NewProgramService(programRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, programRepo, validate, logr)
	reportSvc := service.NewReportService(reportRepo, cacheSvc, cfg.Reports.CacheTTL, logr)
	participationSvc := service.NewParticipationService(participationRepo, studentRepo, activityRepo, reportSvc, metricsSvc, validate, logr)
	activitySvc := service.NewActivityService(activityRepo, programRepo, participationSvc, reportSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	programHandler := handler.NewProgramHandler(programSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	activityHandler := handler.NewActivityHandler(activitySvc, participationSvc)
	participationHandler := handler.NewParticipationHandler(participationSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/programs", programHandler.List)
	protected.POST("/programs", programHandler.Create)
	protected.GET("/programs/:id", programHandler.Get)
	protected.PUT("/programs/:id", programHandler.Update)
	protected.DELETE("/programs/:id", middleware.RequireRole(models.RoleAdmin), programHandler.Delete)

	protected.GET("/students", studentHandler.List)
	protected.POST("/students", studentHandler.Create)
	protected.GET("/students/:id", studentHandler.Get)
	protected.GET("/students/:id/balance", studentHandler.Balance)
	protected.PUT("/students/:id", studentHandler.Update)
	protected.DELETE("/students/:id", studentHandler.Delete)

	protected.GET("/activities", activityHandler.List)
	protected.GET("/activities/series", activityHandler.Series)
	protected.POST("/activities", activityHandler.Create)
	protected.GET("/activities/:id", activityHandler.Get)
	protected.PUT("/activities/:id", activityHandler.Update)
	protected.DELETE("/activities/:id", activityHandler.Delete)
	protected.POST("/activities/:id/auto-enroll", activityHandler.AutoEnroll)

	protected.GET("/participations", participationHandler.List)
	protected.POST("/participations", participationHandler.Record)
	protected.DELETE("/participations/:id", participationHandler.Delete)
	protected.POST("/adjustments", middleware.RequireRole(models.RoleAdmin), participationHandler.Adjust)

	protected.GET("/reports/summary", reportHandler.Summary)
	protected.GET("/reports/leaderboard", reportHandler.Leaderboard)
	protected.GET("/reports/activities", reportHandler.Activities)
	protected.GET("/reports/participation", reportHandler.Participation)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
