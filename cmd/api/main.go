package main

import (
	"context"
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

	_ "github.com/learnhub-dev/learnhub-api/api/swagger"
	"github.com/learnhub-dev/learnhub-api/internal/handler"
	"github.com/learnhub-dev/learnhub-api/internal/middleware"
	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/repository"
	"github.com/learnhub-dev/learnhub-api/internal/service"
	"github.com/learnhub-dev/learnhub-api/pkg/cache"
	"github.com/learnhub-dev/learnhub-api/pkg/config"
	"github.com/learnhub-dev/learnhub-api/pkg/database"
	"github.com/learnhub-dev/learnhub-api/pkg/jobs"
	"github.com/learnhub-dev/learnhub-api/pkg/logger"
	"github.com/learnhub-dev/learnhub-api/pkg/media"
	corsmiddleware "github.com/learnhub-dev/learnhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/learnhub-dev/learnhub-api/pkg/middleware/requestid"
	"github.com/learnhub-dev/learnhub-api/pkg/payment"
	"github.com/learnhub-dev/learnhub-api/pkg/storage"
)

// @title LearnHub API
// @version 1.0.0
// @description Learning management backend: catalog, enrollments, payments and roster exports
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

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var mediaStore media.Store
	if cfg.Media.Enabled {
		store, err := media.NewB2Store(rootCtx, cfg.Media)
		if err != nil {
			logr.Sugar().Fatalw("failed to init media store", "error", err)
		}
		mediaStore = store
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	catalogSvc := service.NewCatalogService(courseRepo, cacheRepo, cfg.Catalog.CacheTTL, logr)
	courseSvc := service.NewCourseService(courseRepo, mediaStore, catalogSvc, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, courseRepo, catalogSvc, validate, logr)
	quizSvc := service.NewQuizService(quizRepo, courseRepo, catalogSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, courseRepo, catalogSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, catalogSvc, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, enrollmentRepo, payment.NewStripeGateway(cfg.Payments), cfg.Payments, validate, logr)
	metricsSvc := service.NewMetricsService()
	catalogSvc.SetMetrics(metricsSvc)
	paymentSvc.SetMetrics(metricsSvc)

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportRepo, enrollmentRepo, courseRepo, exportStore, signer, validate, logr)
		exportSvc.SetMetrics(metricsSvc)
		exportQueue = jobs.NewQueue("exports", exportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(rootCtx)
		exportSvc.SetQueue(exportQueue)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, catalogSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	quizHandler := handler.NewQuizHandler(quizSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireAuth := middleware.JWT(authSvc)
	anyRole := middleware.RBAC(userRepo, models.RoleStudent, models.RoleInstructor, models.RoleAdmin)
	staffOnly := middleware.RBAC(userRepo, models.RoleInstructor, models.RoleAdmin)
	adminOnly := middleware.RBAC(userRepo, models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", requireAuth, authHandler.Logout)
			auth.GET("/me", requireAuth, authHandler.Me)
		}

		users := api.Group("/users", requireAuth, adminOnly)
		{
			users.GET("", userHandler.List)
			users.GET("/:id", userHandler.Get)
		}

		courses := api.Group("/courses")
		{
			courses.GET("", courseHandler.List)
			courses.GET("/catalog", courseHandler.Catalog)
			courses.GET("/:courseId", courseHandler.Get)
			courses.POST("", requireAuth, staffOnly, courseHandler.Create)
			courses.PUT("/:courseId", requireAuth, staffOnly, courseHandler.Update)
			courses.DELETE("/:courseId", requireAuth, adminOnly, courseHandler.Delete)

			courses.GET("/:courseId/lessons", lessonHandler.ListByCourse)
			courses.POST("/:courseId/lessons", requireAuth, staffOnly, lessonHandler.Create)
			courses.GET("/:courseId/quizzes", quizHandler.ListByCourse)
			courses.POST("/:courseId/quizzes", requireAuth, staffOnly, quizHandler.Create)
			courses.GET("/:courseId/assignments", assignmentHandler.ListByCourse)
			courses.POST("/:courseId/assignments", requireAuth, staffOnly, assignmentHandler.Create)
		}

		lessons := api.Group("/lessons")
		{
			lessons.GET("/:id", lessonHandler.Get)
			lessons.PUT("/:id", requireAuth, staffOnly, lessonHandler.Update)
			lessons.DELETE("/:id", requireAuth, staffOnly, lessonHandler.Delete)
			lessons.POST("/:id/complete", requireAuth, anyRole, lessonHandler.Complete)
			lessons.GET("/:id/completions", requireAuth, staffOnly, lessonHandler.CompletedStudents)
		}

		quizzes := api.Group("/quizzes")
		{
			quizzes.GET("/:id", requireAuth, anyRole, quizHandler.Get)
			quizzes.PUT("/:id", requireAuth, staffOnly, quizHandler.Update)
			quizzes.DELETE("/:id", requireAuth, staffOnly, quizHandler.Delete)
			quizzes.POST("/:id/submissions", requireAuth, anyRole, quizHandler.Submit)
			quizzes.GET("/:id/submissions", requireAuth, staffOnly, quizHandler.Submissions)
			quizzes.GET("/:id/submissions/me", requireAuth, anyRole, quizHandler.MySubmission)
		}

		assignments := api.Group("/assignments")
		{
			assignments.GET("/:id", requireAuth, anyRole, assignmentHandler.Get)
			assignments.PUT("/:id", requireAuth, staffOnly, assignmentHandler.Update)
			assignments.DELETE("/:id", requireAuth, staffOnly, assignmentHandler.Delete)
			assignments.POST("/:id/submissions", requireAuth, anyRole, assignmentHandler.Submit)
			assignments.GET("/:id/submissions", requireAuth, staffOnly, assignmentHandler.Submissions)
		}
		api.POST("/submissions/:submissionId/grade", requireAuth, staffOnly, assignmentHandler.Grade)

		enrollments := api.Group("/enrollments", requireAuth)
		{
			enrollments.POST("", anyRole, enrollmentHandler.Enroll)
			enrollments.GET("", anyRole, enrollmentHandler.List)
			enrollments.GET("/:id", anyRole, enrollmentHandler.Get)
			enrollments.PUT("/:id", adminOnly, enrollmentHandler.UpdateStatus)
			enrollments.DELETE("/:id", adminOnly, enrollmentHandler.Delete)
		}

		payments := api.Group("/payments", requireAuth, anyRole)
		{
			payments.POST("", paymentHandler.Charge)
			payments.GET("", paymentHandler.History)
			payments.GET("/:intentId", paymentHandler.Status)
		}

		if exportSvc != nil {
			exportHandler := handler.NewExportHandler(exportSvc)
			api.POST("/courses/:courseId/exports", requireAuth, staffOnly, exportHandler.Request)
			api.GET("/exports/:id", requireAuth, staffOnly, exportHandler.Get)
			api.GET("/exports/download/:token", exportHandler.Download)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
	cancel()
}
