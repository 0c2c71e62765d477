package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foliosend/foliosend/internal/analytics"
	"github.com/foliosend/foliosend/internal/cache"
	"github.com/foliosend/foliosend/internal/config"
	"github.com/foliosend/foliosend/internal/database"
	"github.com/foliosend/foliosend/internal/logging"
	"github.com/foliosend/foliosend/internal/metrics"
	"github.com/foliosend/foliosend/internal/middleware"
	"github.com/foliosend/foliosend/internal/queue"
	"github.com/foliosend/foliosend/internal/scoring"
	"github.com/foliosend/foliosend/internal/storage"
	"github.com/foliosend/foliosend/internal/tracing"
	"github.com/foliosend/foliosend/internal/upload"
	"github.com/foliosend/foliosend/internal/webhook"
	"github.com/foliosend/foliosend/pkg/models"
)

type API struct {
	cfg         *config.Config
	repo        *database.Repository
	storage     *storage.Storage
	cache       *cache.Cache
	queue       *queue.Queue
	analytics   *analytics.Service
	webhooks    *webhook.Service
	uploads     *upload.Service
	rateLimiter *middleware.RateLimiter
}

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

	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("foliosend-api", cfg.Tracing.JaegerEndpoint)
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

	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// The API degrades without Redis: no live counters, every analytics
	// read recomputes.
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

	uploadService := upload.NewService(os.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go uploadService.CleanupExpired(ctx)

	rateLimiter := middleware.NewRateLimiter(cfg.Analytics.IngestRPS, cfg.Analytics.IngestBurst)
	go rateLimiter.Cleanup()

	api := &API{
		cfg:         cfg,
		repo:        repo,
		storage:     stor,
		cache:       c,
		queue:       q,
		analytics:   analyticsService,
		webhooks:    webhookService,
		uploads:     uploadService,
		rateLimiter: rateLimiter,
	}

	// Metrics on a separate port so the scrape path skips the middleware
	// chain.
	metricsServer := metrics.NewServer(cfg.Server.MetricsPort)
	go func() {
		if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Metrics server shutdown error: %v", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	router.GET("/health", api.healthCheck)

	// Public routes
	public := router.Group("/api/v1")
	{
		public.POST("/auth/register", api.register)
		public.POST("/auth/login", api.login)
	}

	// Viewer-facing tracking routes, keyed by slug and unauthenticated.
	// Rate limited per client so a hostile embed cannot flood the ingest
	// path.
	tracking := router.Group("/api/v1/t")
	tracking.Use(middleware.RateLimit(api.rateLimiter))
	{
		tracking.GET("/:slug", api.resolveLink)
		tracking.POST("/:slug/sessions", api.startSession)
		tracking.POST("/:slug/sessions/:session_id/pages", api.recordPageEvent)
		tracking.POST("/:slug/sessions/:session_id/interactions", api.recordInteraction)
		tracking.POST("/:slug/sessions/:session_id/video", api.recordVideoProgress)
		tracking.POST("/:slug/sessions/:session_id/close", api.closeSession)
	}

	// Owner dashboard routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.OptionalAuth(api.repo))
	{
		protected.GET("/me", api.currentUser)

		// Links
		protected.POST("/links", middleware.LinkQuota(api.repo), api.createLink)
		protected.POST("/links/:id/document", api.uploadDocument)
		protected.GET("/links", api.listLinks)
		protected.GET("/links/:id", api.getLink)
		protected.PUT("/links/:id", api.updateLink)
		protected.DELETE("/links/:id", api.deleteLink)
		protected.GET("/links/:id/file", api.getLinkFile)

		// Multipart uploads for large files
		protected.POST("/uploads", api.initiateUpload)
		protected.PUT("/uploads/:upload_id/parts/:part_number", api.uploadPart)
		protected.POST("/uploads/:upload_id/complete", api.completeUpload)
		protected.DELETE("/uploads/:upload_id", api.abortUpload)

		// Analytics
		protected.GET("/links/:id/analytics", api.getLinkAnalytics)
		protected.GET("/links/:id/viewers", api.getLinkViewers)
		protected.GET("/links/:id/heatmap", api.getLinkHeatmap)
		protected.GET("/links/:id/dropoffs", api.getLinkDropOffs)
		protected.GET("/links/:id/insights", api.getLinkInsights)
		protected.GET("/links/:id/live", api.getLiveViews)

		// Contacts
		protected.GET("/contacts", api.listContacts)
		protected.GET("/contacts/export", middleware.RequirePlan(models.PlanPro), api.exportContacts)

		// Webhooks
		protected.POST("/webhooks", api.createWebhook)
		protected.GET("/webhooks", api.listWebhooks)
	}

	return router
}

func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
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
