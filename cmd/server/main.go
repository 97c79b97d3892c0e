// Package main runs the registration review HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-events/regreview/config"
	"github.com/aura-events/regreview/internal/dashboard"
	"github.com/aura-events/regreview/internal/exports"
	"github.com/aura-events/regreview/internal/metrics"
	"github.com/aura-events/regreview/internal/middleware"
	"github.com/aura-events/regreview/internal/registrations"
	"github.com/aura-events/regreview/pkg/database"
	"github.com/aura-events/regreview/pkg/queue"
	"github.com/aura-events/regreview/pkg/redis"
	"github.com/aura-events/regreview/pkg/response"
	"github.com/aura-events/regreview/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	m := metrics.New()

	// Dashboard
	registrationRepo := registrations.NewRepository(pool)
	loader := registrations.NewLoader(registrationRepo, m, logger)
	dashboardSvc := dashboard.NewService(loader, registrationRepo, cfg.Store.Timeout(), m, logger)
	dashboardHandler := dashboard.NewHandler(dashboardSvc, logger)
	if _, err := dashboardSvc.Reload(ctx); err != nil {
		logger.Warn("initial load failed; dashboard starts empty", zap.Error(err))
	}

	// Exports: inline PDF always, queued exports only when Redis and S3 are available.
	var (
		jobs   exports.JobQueue
		signer exports.URLSigner
	)
	if cfg.Redis.Addr != "" && cfg.AWS.Region != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable; async exports disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			s3Client, err := storage.NewS3(ctx, storage.S3Config{
				Region:               cfg.AWS.Region,
				AccessKeyID:          cfg.AWS.AccessKeyID,
				SecretAccessKey:      cfg.AWS.SecretAccessKey,
				ExportsBucket:        cfg.AWS.ExportsBucket,
				PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
			}, logger)
			if err != nil {
				logger.Warn("s3 disabled; async exports disabled", zap.Error(err))
			} else {
				jobs = queue.NewQueue(rdb.Client, logger)
				signer = s3Client
			}
		}
	}
	renderer := exports.NewRenderer(cfg.Export.Title, cfg.Export.Location())
	exportHandler := exports.NewHandler(dashboardSvc, renderer, jobs, signer, m, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	dash := router.Group("/dashboard")
	{
		dash.GET("", dashboardHandler.Show)
		dash.POST("/reload", dashboardHandler.Reload)
		dash.PUT("/search", dashboardHandler.Search)
		dash.PUT("/filter", dashboardHandler.Filter)
		dash.PUT("/page", dashboardHandler.Page)
		dash.GET("/export.pdf", exportHandler.Download)
	}

	regs := router.Group("/registrations")
	{
		regs.GET("/:id", dashboardHandler.Get)
		regs.PATCH("/:id/status", dashboardHandler.UpdateStatus)
		regs.DELETE("/:id", dashboardHandler.Delete)
	}

	router.POST("/exports", exportHandler.Enqueue)
	router.GET("/exports/:id", exportHandler.Status)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
