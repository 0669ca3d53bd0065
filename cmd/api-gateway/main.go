package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-risk-api/api/swagger"
	"github.com/noah-isme/sma-risk-api/internal/handler"
	"github.com/noah-isme/sma-risk-api/internal/middleware"
	"github.com/noah-isme/sma-risk-api/internal/repository"
	"github.com/noah-isme/sma-risk-api/internal/service"
	"github.com/noah-isme/sma-risk-api/pkg/cache"
	"github.com/noah-isme/sma-risk-api/pkg/config"
	"github.com/noah-isme/sma-risk-api/pkg/database"
	"github.com/noah-isme/sma-risk-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-risk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-risk-api/pkg/middleware/requestid"
)

// @title SMA Risk API
// @version 1.0.0
// @description Student risk identification and intervention lifecycle engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Risk.SummaryCacheTTL, logr, true)
		defer cacheRepo.Close() //nolint:errcheck
	}

	validate := validator.New()

	academicRepo := repository.NewAcademicRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	caseRepo := repository.NewRiskCaseRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)

	indicatorSvc := service.NewIndicatorService(academicRepo, academicRepo, academicRepo, logr)
	caseSvc := service.NewRiskCaseService(caseRepo, studentRepo, indicatorSvc, cacheSvc, metricsSvc, validate, logr, cfg.Risk.SummaryCacheTTL)
	resolutionSvc := service.NewResolutionService(caseRepo, cacheSvc, validate, logr)
	interventionSvc := service.NewInterventionService(interventionRepo, caseRepo, validate, logr)
	tokenSvc := service.NewTokenService(cfg.JWT)

	var sweepSvc *service.SweepService
	if cfg.Sweep.Enabled {
		sweepSvc = service.NewSweepService(caseRepo, caseSvc, metricsSvc, logr, cfg.Sweep.Concurrency, cfg.Sweep.BatchSize)
	}

	caseHandler := handler.NewRiskCaseHandler(caseSvc, resolutionSvc, nil)
	if sweepSvc != nil {
		caseHandler = handler.NewRiskCaseHandler(caseSvc, resolutionSvc, sweepSvc)
	}
	interventionHandler := handler.NewInterventionHandler(interventionSvc)
	indicatorHandler := handler.NewIndicatorHandler(indicatorSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.Risk.Enabled {
		api := r.Group(cfg.APIPrefix)
		api.Use(middleware.JWT(tokenSvc))

		api.GET("/risk-cases", caseHandler.List)
		api.POST("/risk-cases", caseHandler.Create)
		api.GET("/risk-cases/summary", caseHandler.Summary)
		api.GET("/risk-cases/:id", caseHandler.Get)
		api.PATCH("/risk-cases/:id/status", caseHandler.SetStatus)
		api.PATCH("/risk-cases/:id/assignee", caseHandler.SetAssignee)
		api.POST("/risk-cases/:id/resolve", caseHandler.Resolve)
		api.GET("/risk-cases/:id/interventions", interventionHandler.List)
		api.POST("/risk-cases/:id/interventions", interventionHandler.Create)
		api.GET("/students/:id/risk-indicators", indicatorHandler.Indicators)
		api.POST("/students/:id/risk-score", indicatorHandler.Score)
		api.POST("/risk-sweep", caseHandler.Sweep)
	}

	if sweepSvc != nil {
		go sweepSvc.Schedule(context.Background(), cfg.Sweep.Interval)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
