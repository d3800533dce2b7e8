package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-grading/api/swagger"
	"github.com/noah-isme/sma-adp-grading/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-adp-grading/internal/middleware"
	"github.com/noah-isme/sma-adp-grading/internal/repository"
	"github.com/noah-isme/sma-adp-grading/internal/service"
	"github.com/noah-isme/sma-adp-grading/pkg/cache"
	"github.com/noah-isme/sma-adp-grading/pkg/config"
	"github.com/noah-isme/sma-adp-grading/pkg/database"
	"github.com/noah-isme/sma-adp-grading/pkg/jobs"
	"github.com/noah-isme/sma-adp-grading/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-grading/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-grading/pkg/middleware/requestid"
)

// @title SMA ADP Grading API
// @version 1.0.0
// @description Hierarchical grading: settings inheritance, grade aggregation and report cards
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
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	store, closeStore := newCacheStore(cfg, logr)
	defer closeStore()
	cacheSvc := service.NewCacheService(store, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	classGroupRepo := repository.NewClassGroupRepository(db)
	classRepo := repository.NewClassRepository(db)
	systemRepo := repository.NewAssessmentSystemRepository(db)
	termRepo := repository.NewTermRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeBookRepo := repository.NewGradeBookRepository(db)
	historyRepo := repository.NewGradeHistoryRepository(db)
	resultRepo := repository.NewTermResultRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	tx := database.NewTransactor(db)
	validate := validator.New()

	settings := service.NewSettingsResolver(classGroupRepo, systemRepo, termRepo, classRepo, tx, cacheSvc, validate, logr)
	periods := service.NewPeriodGradeService(subjectRepo, assessmentRepo, submissionRepo, settings, metricsSvc, logr, cfg.Grading.DefaultPassingThreshold, cfg.Grading.RequireAllAssessments)
	terms := service.NewTermGradeService(subjectRepo, settings, periods, gradeBookRepo, historyRepo, cacheSvc, metricsSvc, logr, cfg.Grading.DefaultPassingThreshold)
	cumulative := service.NewCumulativeGradeService(gradeBookRepo, classRepo, subjectRepo, settings, terms, resultRepo, enrollmentRepo, cacheSvc, metricsSvc, logr, cfg.Grading.BatchSize, cfg.Grading.BatchPause)
	lifecycle := service.NewGradeBookService(classRepo, gradeBookRepo, systemRepo, subjectRepo, settings, tx, validate, logr)
	reports := service.NewReportCardService(gradeBookRepo, classRepo, settings, resultRepo, gradeBookRepo, cacheSvc, logr)
	recompute := service.NewRecomputeService(submissionRepo, assessmentRepo, subjectRepo, settings, terms, cumulative, gradeBookRepo, metricsSvc, validate, logr)

	queue := jobs.NewQueue("grade-recompute", recompute.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Grading.RecomputeWorkers,
		MaxRetries: cfg.Grading.RecomputeRetries,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	queueCtx, stopQueue := context.WithCancel(context.Background())
	queue.Start(queueCtx)
	recompute.SetQueue(queue)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Settings:    handler.NewSettingsHandler(settings),
		Grades:      handler.NewGradeHandler(periods, terms, cumulative),
		Reports:     handler.NewReportHandler(reports),
		Classes:     handler.NewClassHandler(lifecycle),
		Submissions: handler.NewSubmissionHandler(recompute),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown", zap.Error(err))
	}
	queue.Stop()
	stopQueue()
}

func newCacheStore(cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func()) {
	if cfg.Cache.Backend == config.CacheBackendRedis {
		client, err := cache.NewRedis(cfg.Redis)
		if err == nil {
			store := cache.NewRedisStore(client, cfg.Cache.TTL)
			return store, func() { _ = store.Close() }
		}
		logr.Warn("redis unavailable, falling back to memory cache", zap.Error(err))
	}
	return cache.NewMemoryStore(cfg.Cache.TTL, cfg.Cache.MaxEntries), func() {}
}
