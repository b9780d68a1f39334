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
	"github.com/onestopradio/streamcast/internal/cache"
	"github.com/onestopradio/streamcast/internal/config"
	"github.com/onestopradio/streamcast/internal/database"
	"github.com/onestopradio/streamcast/internal/logging"
	"github.com/onestopradio/streamcast/internal/metrics"
	"github.com/onestopradio/streamcast/internal/middleware"
	"github.com/onestopradio/streamcast/internal/provisioner"
	"github.com/onestopradio/streamcast/internal/queue"
	"github.com/onestopradio/streamcast/internal/shoutcast"
	"github.com/onestopradio/streamcast/internal/tracing"
	"github.com/onestopradio/streamcast/internal/webhook"
	"github.com/onestopradio/streamcast/pkg/models"
)

type API struct {
	coordinator *provisioner.Coordinator
	streams     *database.StreamRepository
	pool        *database.PortPoolRepository
	servers     *database.ServerRepository
	cache       *cache.Cache
	queue       *queue.Queue
	cfg         *config.Config
	logger      *logging.Logger
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize JWT secret from config
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("streamcast-api", cfg.Tracing.Endpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	streams := database.NewStreamRepository(db)
	pool := database.NewPortPoolRepository(db)
	sessions := database.NewSessionRepository(db)
	servers := database.NewServerRepository(db)
	webhooks := database.NewWebhookRepository(db)

	// Seed the fixed port range and the primary server registration.
	// Both are idempotent across restarts.
	if err := pool.Initialize(ctx, cfg.Provisioning.PortRangeStart, cfg.Provisioning.PortRangeEnd); err != nil {
		logger.Fatalf("Failed to initialize port pool: %v", err)
	}
	if err := servers.SeedPrimary(ctx, "primary", cfg.Shoutcast.Hostname,
		cfg.Shoutcast.AdminPort, cfg.Shoutcast.AdminPassword, cfg.Shoutcast.MaxStreams); err != nil {
		logger.Fatalf("Failed to seed primary server: %v", err)
	}

	// Initialize cache
	cacheClient, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cacheClient.Close()

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	if err := q.SetupDeadLetterQueue(); err != nil {
		logger.Fatalf("Failed to set up dead letter queue: %v", err)
	}

	// Initialize webhook service and its retry worker
	webhookService := webhook.NewService(webhooks)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go webhookService.RetryWorker(workerCtx)

	coordinator := provisioner.NewCoordinator(provisioner.Deps{
		Pool:     pool,
		Streams:  streams,
		Sessions: sessions,
		Servers:  servers,
		Clients: func(server *models.StreamingServer) provisioner.StreamAdmin {
			return shoutcast.NewClient(server.Hostname, server.AdminPort,
				server.AdminPassword, cfg.Shoutcast.RequestTimeout)
		},
		Queue:          q,
		Notifier:       webhookService,
		Provisioning:   cfg.Provisioning,
		PublicHostname: cfg.Server.PublicHostname,
		SampleLimit:    cfg.Monitoring.SampleLimit,
		Logger:         logger,
	})

	api := &API{
		coordinator: coordinator,
		streams:     streams,
		pool:        pool,
		servers:     servers,
		cache:       cacheClient,
		queue:       q,
		cfg:         cfg,
		logger:      logger,
	}

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, logger)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()

	// Setup router
	router := setupRouter(api)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopWorkers()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Metrics server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(api.logger))

	// Health check
	router.GET("/health", api.healthCheck)

	limiter := middleware.NewRateLimiter(10, 20)

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth())
	v1.Use(middleware.RateLimit(limiter))
	{
		streams := v1.Group("/streams")
		{
			streams.POST("/provision", api.provisionStream)
			streams.GET("/my-stream", api.getMyStream)
			streams.PATCH("/my-stream", api.updateMyStream)
			streams.GET("/my-stream/stats", api.getMyStreamStats)
			streams.POST("/my-stream/suspend", api.suspendMyStream)
			streams.POST("/my-stream/resume", api.resumeMyStream)
			streams.POST("/my-stream/terminate", api.terminateMyStream)
			streams.POST("/my-stream/retry-configuration", api.retryMyStreamConfiguration)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/streams", api.listStreams)
			admin.GET("/streams/:id", api.getStream)
			admin.GET("/streams/:id/stats", api.getStreamStats)
			admin.POST("/streams/:id/suspend", api.suspendStream)
			admin.POST("/streams/:id/resume", api.resumeStream)
			admin.POST("/streams/:id/terminate", api.terminateStream)
			admin.POST("/streams/:id/retry-configuration", api.retryStreamConfiguration)
			admin.GET("/pool", api.getPoolStatus)
			admin.GET("/server-status", api.getServerStatus)
			admin.GET("/queue-depth", api.getQueueDepth)
			admin.POST("/dlq/requeue", api.requeueDLQ)
		}
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.streams.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
