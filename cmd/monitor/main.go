package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/onestopradio/streamcast/internal/cache"
	"github.com/onestopradio/streamcast/internal/config"
	"github.com/onestopradio/streamcast/internal/database"
	"github.com/onestopradio/streamcast/internal/logging"
	"github.com/onestopradio/streamcast/internal/metrics"
	"github.com/onestopradio/streamcast/internal/monitor"
	"github.com/onestopradio/streamcast/internal/provisioner"
	"github.com/onestopradio/streamcast/internal/queue"
	"github.com/onestopradio/streamcast/internal/shoutcast"
	"github.com/onestopradio/streamcast/internal/tracing"
	"github.com/onestopradio/streamcast/internal/webhook"
	"github.com/onestopradio/streamcast/pkg/models"
)

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

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("streamcast-monitor", cfg.Tracing.Endpoint)
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

	streams := database.NewStreamRepository(db)
	pool := database.NewPortPoolRepository(db)
	sessions := database.NewSessionRepository(db)
	servers := database.NewServerRepository(db)
	webhooks := database.NewWebhookRepository(db)

	// Initialize cache, used as the poll leader lock
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

	webhookService := webhook.NewService(webhooks)

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

	aggregator := monitor.NewAggregator(streams, sessions, servers, pool,
		func(server *models.StreamingServer) monitor.StatusClient {
			return shoutcast.NewClient(server.Hostname, server.AdminPort,
				server.AdminPassword, cfg.Shoutcast.RequestTimeout)
		},
		cacheClient, cfg.Monitoring, logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down monitor gracefully...")
		cancel()
	}()

	// Reconcile handler: re-push a stream's configuration to the
	// streaming server. Failures that can still succeed later go to the
	// retry queue with backoff; a stream that no longer needs
	// reconfiguring is dropped.
	reconcileHandler := func(task *queue.ReconcileTask) error {
		reconcileLog := logger.WithStreamID(task.StreamID).WithField("attempt", task.Attempt)

		err := coordinator.RetryConfiguration(ctx, task.StreamID)
		if err == nil {
			metrics.ReconcileTasksProcessed.WithLabelValues("success").Inc()
			reconcileLog.Info("Reconciled stream configuration")
			return nil
		}

		switch provisioner.KindOf(err) {
		case provisioner.KindNotFound, provisioner.KindInvalidTransition:
			// The stream was terminated in the meantime
			metrics.ReconcileTasksProcessed.WithLabelValues("dropped").Inc()
			reconcileLog.ErrorWithErr("Dropping reconcile task", err)
			return nil
		}

		metrics.ReconcileTasksProcessed.WithLabelValues("retried").Inc()
		reconcileLog.ErrorWithErr("Reconcile failed, scheduling retry", err)

		if perr := q.PublishToRetryQueue(ctx, task); perr != nil {
			// Leave the original message to be redelivered
			reconcileLog.ErrorWithErr("Failed to schedule reconcile retry", perr)
			return perr
		}

		return nil
	}

	logger.Info("Monitor started, consuming reconcile tasks...")
	if err := q.ConsumeReconcile(ctx, reconcileHandler); err != nil {
		logger.Fatalf("Failed to consume reconcile tasks: %v", err)
	}

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.Server.MetricsPort+1, logger)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()

	// The polling loop blocks until shutdown
	aggregator.Run(ctx)

	if err := metricsServer.Shutdown(context.Background()); err != nil {
		logger.Errorf("Metrics server shutdown: %v", err)
	}
	logger.Info("Monitor stopped")
}
