package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foliosend/foliosend/internal/analytics"
	"github.com/foliosend/foliosend/internal/cache"
	"github.com/foliosend/foliosend/internal/config"
	"github.com/foliosend/foliosend/internal/database"
	"github.com/foliosend/foliosend/internal/logging"
	"github.com/foliosend/foliosend/internal/metrics"
	"github.com/foliosend/foliosend/internal/queue"
	"github.com/foliosend/foliosend/internal/scheduler"
	"github.com/foliosend/foliosend/internal/scoring"
	"github.com/foliosend/foliosend/internal/tracing"
	"github.com/foliosend/foliosend/internal/webhook"
	"github.com/foliosend/foliosend/pkg/models"
)

// The worker owns everything that happens after a session closes:
// contact upserts, webhook fan-out, and aggregate refreshes.
func main() {
	logger, err := logging.NewDefaultLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("foliosend-worker", cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Warnf("Failed to initialize tracer: %v", err)
		} else {
			defer closer.Close()
		}
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warnf("Failed to connect to Redis, running uncached: %v", err)
		c = nil
	} else {
		defer c.Close()
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	if err := q.SetupDeadLetterQueue(); err != nil {
		logger.Warnf("Failed to setup dead letter queue: %v", err)
	}

	webhookService := webhook.NewService(repo)

	scoringCfg := scoring.Config{HighEngagementSeconds: cfg.Analytics.HighEngagementSeconds}
	analyticsService := analytics.NewService(repo, c, q, webhookService, scoringCfg, cfg.Analytics.AggregateTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Webhook deliveries that failed earlier get retried here
	go webhookService.RetryWorker(ctx)

	// Background refreshes; the cache lock keeps replicas from
	// recomputing the same link.
	var locker scheduler.Locker
	if c != nil {
		locker = c
	}
	staleAfter := fmt.Sprintf("%d minutes", int(cfg.Analytics.RefreshInterval.Minutes()))
	refreshScheduler := scheduler.NewRefreshScheduler(repo, analyticsService, locker, 4, cfg.Analytics.RefreshInterval, staleAfter)
	refreshScheduler.Start()
	defer refreshScheduler.Stop()

	// Queue depth gauge for the dashboard
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if depth, err := q.GetQueueDepth(); err == nil {
					metrics.SetEventQueueDepth(depth)
				}
			}
		}
	}()

	metricsServer := metrics.NewServer(cfg.Server.MetricsPort)
	go func() {
		if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker...")
		cancel()
	}()

	handler := func(event *models.SessionClosedEvent) error {
		logger.WithSessionID(event.SessionID).WithLinkID(event.LinkID).Info("Processing session-close event")

		if err := analyticsService.HandleSessionClosed(ctx, event); err != nil {
			logger.WithSessionID(event.SessionID).ErrorWithErr("Failed to process session-close event", err)
			metrics.RecordEventProcessed("failed")
			return err
		}

		// The refresh dedupes through the scheduler, jumping ahead of
		// the stale scan.
		refreshScheduler.Enqueue(event.LinkID, scheduler.PriorityEvent)
		metrics.RecordEventProcessed("processed")
		return nil
	}

	logger.Info("Worker started, waiting for session events...")
	if err := q.ConsumeSessionEvents(ctx, handler); err != nil {
		logger.Fatalf("Failed to consume session events: %v", err)
	}

	// Exhausted events land in the DLQ; log them so an operator can
	// replay or discard.
	if err := q.ConsumeDLQ(ctx, func(event *models.SessionClosedEvent, reason string) error {
		logger.WithSessionID(event.SessionID).Warnf("Session event dead-lettered: %s", reason)
		return nil
	}); err != nil {
		logger.Warnf("Failed to consume dead letter queue: %v", err)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Metrics server shutdown error: %v", err)
	}

	logger.Info("Worker stopped")
}
