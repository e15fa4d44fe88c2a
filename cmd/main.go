package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"site-assistant/internal/ai"
	"site-assistant/internal/config"
	"site-assistant/internal/index"
	"site-assistant/internal/logger"
	"site-assistant/internal/telemetry"
	"site-assistant/middleware"
	"site-assistant/models"
	"site-assistant/routes"
	"site-assistant/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("site-assistant")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	}

	embedder, err := ai.NewClient(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}

	var cache *services.EmbeddingCache
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, query embedding cache disabled", "error", err)
	} else {
		cache = services.NewEmbeddingCache(rdb, cfg.CacheTTL, metrics)
		defer rdb.Close()
	}

	// The server refuses to start without a loadable index. A stale answer
	// is acceptable, a silently empty one is not.
	retriever, err := services.OpenRetriever(cfg.IndexDir, embedder, index.Metric(cfg.SimilarityMetric), cache)
	if err != nil {
		if errors.Is(err, models.ErrConfigMismatch) {
			log.Fatalf("Index at %s was built with a different configuration, rebuild it: %v", cfg.IndexDir, err)
		}
		log.Fatalf("No loadable index at %s (run the build command first): %v", cfg.IndexDir, err)
	}
	handle := routes.NewIndexHandle(retriever)
	m := retriever.Manifest()
	logger.Info("index loaded", "chunks", m.ChunkCount, "model", m.EmbeddingModelID, "built_at", m.BuiltAt)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "vectors": handle.Get().Size()})
	})

	routes.SetupQueryRoutes(router, cfg, handle, metrics)
	routes.SetupAdminRoutes(router, cfg, asynqClient, handle, embedder, cache)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
