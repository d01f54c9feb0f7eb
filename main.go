package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/topicdetect/config"
	"github.com/AnTengye/topicdetect/handler"
	"github.com/AnTengye/topicdetect/middleware"
	"github.com/AnTengye/topicdetect/pkg/logger"
	"github.com/AnTengye/topicdetect/service"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully",
		"bucket", cfg.Storage.Bucket,
		"job_provider", cfg.Jobs.Provider,
	)

	ctx := context.Background()

	store, err := service.NewS3Store(&cfg.Storage)
	if err != nil {
		slog.Error("failed to initialize object store", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		slog.Error("failed to ensure bucket", "bucket", cfg.Storage.Bucket, "error", err)
		os.Exit(1)
	}

	jobs, err := newJobService(ctx, &cfg.Jobs)
	if err != nil {
		slog.Error("failed to initialize job service", "error", err)
		os.Exit(1)
	}

	metrics := service.NewMetrics()
	tracker := service.NewRunTracker(cfg.Tracker.MaxRuns)
	stager := service.NewStager(store, &cfg.Storage)
	pipeline := service.NewPipeline(
		service.NewExtractor(service.NewHTTPFetcher(&cfg.Fetch)),
		stager,
		service.NewSubmitter(jobs, &cfg.Jobs),
		service.NewPoller(jobs, &cfg.Jobs, metrics),
		tracker,
		metrics,
	)

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, routes{
		topics:  handler.NewTopicsHandler(pipeline),
		runs:    handler.NewRunsHandler(tracker),
		objects: handler.NewObjectsHandler(stager),
		metrics: metrics.Handler(),
	})

	// The pipeline answers only after the job is terminal.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.ServerWriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

func newJobService(ctx context.Context, cfg *config.JobsConfig) (service.JobService, error) {
	switch cfg.Provider {
	case config.ProviderHTTP:
		return service.NewHTTPJobService(cfg), nil
	case config.ProviderComprehend:
		return service.NewComprehendJobService(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown job provider %q", cfg.Provider)
	}
}

type routes struct {
	topics  *handler.TopicsHandler
	runs    *handler.RunsHandler
	objects *handler.ObjectsHandler
	metrics http.Handler
}

func newRouter(cfg *config.Config, r routes) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerMinute, time.Minute))

	router.POST("/", r.topics.Detect)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(r.metrics))

	api := router.Group("/api")
	{
		api.GET("/runs", r.runs.List)
		api.GET("/runs/:id", r.runs.Get)
		api.GET("/objects/:key", r.objects.Get)
	}

	return router
}
