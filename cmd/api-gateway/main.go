package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/studyhive/studyhive-api/api/swagger"
	"github.com/studyhive/studyhive-api/internal/gateway"
	"github.com/studyhive/studyhive-api/internal/handler"
	"github.com/studyhive/studyhive-api/internal/middleware"
	"github.com/studyhive/studyhive-api/internal/models"
	"github.com/studyhive/studyhive-api/internal/repository"
	"github.com/studyhive/studyhive-api/internal/service"
	"github.com/studyhive/studyhive-api/pkg/cache"
	"github.com/studyhive/studyhive-api/pkg/config"
	"github.com/studyhive/studyhive-api/pkg/database"
	"github.com/studyhive/studyhive-api/pkg/export"
	"github.com/studyhive/studyhive-api/pkg/jobs"
	"github.com/studyhive/studyhive-api/pkg/logger"
	"github.com/studyhive/studyhive-api/pkg/mailer"
	corsmiddleware "github.com/studyhive/studyhive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studyhive/studyhive-api/pkg/middleware/requestid"
	"github.com/studyhive/studyhive-api/pkg/storage"

	"github.com/go-playground/validator/v10"
)

// @title StudyHive API
// @version 1.0.0
// @description Academic resource sharing platform with realtime engagement
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}

	downloadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Observability and caching.
	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled && redisClient != nil)

	// Realtime gateway. Emit helpers are package level, so the hub must
	// be installed before any service can fan out events.
	hub := gateway.NewHub(logr)
	gateway.Init(hub)
	go hub.Run(ctx)

	// Services.
	authService := service.NewAuthService(userRepo, mailer.New(cfg.SMTP, logr), validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "studyhive-api",
		FacultySecret:      cfg.Auth.FacultySecret,
		OTPTTL:             cfg.Auth.OTPTTL,
		OTPLength:          cfg.Auth.OTPLength,
	})
	userService := service.NewUserService(userRepo, validate, logr)
	activityService := service.NewActivityService(activityRepo, logr)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, resourceRepo, validate, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notificationService.Start(ctx)
	defer notificationService.Stop()

	resourceService := service.NewResourceService(resourceRepo, uploadStore, downloadSigner, activityService, notificationService, cacheService, validate, logr, service.ResourceConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
		DownloadBasePath: cfg.APIPrefix + "/files",
	})
	commentService := service.NewCommentService(commentRepo, resourceRepo, activityService, validate, logr)
	analyticsService := service.NewAnalyticsService(analyticsRepo, activityRepo, cacheService, logr, cfg.Analytics.CacheTTL)
	exportService := service.NewExportService(activityRepo, resourceRepo, exportStore, exportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())
	fileService := service.NewFileService(downloadSigner, uploadStore)

	// Expired exports are swept on an interval.
	go func() {
		ticker := time.NewTicker(cfg.Exports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := exportService.Cleanup(cfg.Exports.SignedURLTTL); err != nil {
					logr.Sugar().Warnw("export cleanup failed", "error", err)
				} else if len(removed) > 0 {
					logr.Sugar().Infow("expired exports removed", "count", len(removed))
				}
			}
		}
	}()

	ws := gateway.New(hub, authService, logr, gateway.Options{
		ReadBufferSize:  cfg.Gateway.ReadBufferSize,
		WriteBufferSize: cfg.Gateway.WriteBufferSize,
		SendBufferSize:  cfg.Gateway.SendBufferSize,
		PingInterval:    cfg.Gateway.PingInterval,
		PongWait:        cfg.Gateway.PongWait,
		WriteWait:       cfg.Gateway.WriteWait,
		MaxMessageBytes: cfg.Gateway.MaxMessageBytes,
		AllowedOrigins:  cfg.Gateway.AllowedOrigins,
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	resourceHandler := handler.NewResourceHandler(resourceService, commentService, fileService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	activityHandler := handler.NewActivityHandler(activityService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, metricsService, exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/verify-otp", authHandler.VerifyOTP)
		auth.POST("/resend-otp", authHandler.ResendOTP)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authService))
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	resources := api.Group("/resources", middleware.JWT(authService))
	{
		resources.GET("", resourceHandler.List)
		resources.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty, models.RoleStudent), resourceHandler.Create)
		resources.POST("/stats", resourceHandler.IncrementStats)
		resources.GET("/:id", resourceHandler.Get)
		resources.PUT("/:id", resourceHandler.Update)
		resources.PATCH("/:id", resourceHandler.Update)
		resources.DELETE("/:id", resourceHandler.Delete)
		resources.POST("/:id/like", resourceHandler.Like)
		resources.POST("/:id/download", resourceHandler.Download)
		resources.GET("/:id/stats", resourceHandler.Stats)
		resources.POST("/:id/comments", resourceHandler.CreateComment)
		resources.GET("/:id/comments", resourceHandler.ListComments)
		resources.DELETE("/:id/comments/:commentId", resourceHandler.DeleteComment)
	}

	// Signed tokens carry the authorization for file downloads.
	api.GET("/files/:token", resourceHandler.ServeFile)
	api.GET("/export/:token", analyticsHandler.DownloadExport)

	notifications := api.Group("/notifications", middleware.JWT(authService))
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/resource-uploaded", middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty), notificationHandler.ResourceUploaded)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
	}

	api.GET("/activities/me", middleware.JWT(authService), activityHandler.ListMine)

	staff := api.Group("", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty))
	{
		staff.GET("/analytics/overview", analyticsHandler.Overview)
		staff.POST("/analytics/export/activities", analyticsHandler.ExportActivities)
		staff.POST("/analytics/export/resources", analyticsHandler.ExportResources)
	}

	admin := api.Group("", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/activities", activityHandler.List)
		admin.GET("/analytics/system", analyticsHandler.SystemMetrics)
	}

	api.GET("/ws", ws.Handle)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
