package routes

import (
	"errors"
	"net/http"

	"site-assistant/internal/ai"
	"site-assistant/internal/config"
	"site-assistant/internal/index"
	"site-assistant/internal/logger"
	"site-assistant/internal/queue"
	"site-assistant/services"
	"site-assistant/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

type crawlRequest struct {
	StartURL     string `json:"start_url"`
	MaxPages     int    `json:"max_pages"`
	RebuildAfter bool   `json:"rebuild_after"`
}

// SetupAdminRoutes registers index maintenance endpoints. Crawls and
// rebuilds run in the background worker; reload swaps the served index.
func SetupAdminRoutes(router *gin.Engine, cfg *config.Config, asynqClient *asynq.Client, handle *IndexHandle, embedder ai.Embedder, cache *services.EmbeddingCache) {
	admin := router.Group("/admin")

	admin.POST("/crawl", func(c *gin.Context) {
		var req crawlRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if req.StartURL == "" && cfg.CrawlStartURL == "" {
			utils.RespondWithBadRequest(c, "start_url required (no CRAWL_START_URL configured)", nil)
			return
		}

		task, err := queue.NewCrawlSiteTask(req.StartURL, req.MaxPages, req.RebuildAfter)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create crawl task", nil)
			return
		}
		info, err := asynqClient.EnqueueContext(c.Request.Context(), task)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				utils.RespondWithError(c, http.StatusConflict, "already_queued",
					"A crawl is already pending or running", nil)
				return
			}
			utils.RespondWithUnavailable(c, "Task queue unavailable")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
	})

	admin.POST("/rebuild", func(c *gin.Context) {
		task, err := queue.NewRebuildIndexTask("admin")
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create rebuild task", nil)
			return
		}
		info, err := asynqClient.EnqueueContext(c.Request.Context(), task)
		if err != nil {
			// Rebuilds are single-flight; a second request while one is
			// queued is not an outage.
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				utils.RespondWithError(c, http.StatusConflict, "already_queued",
					"A rebuild is already pending or running", nil)
				return
			}
			utils.RespondWithUnavailable(c, "Task queue unavailable")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
	})

	admin.POST("/reload", func(c *gin.Context) {
		retriever, err := services.OpenRetriever(cfg.IndexDir, embedder, index.Metric(cfg.SimilarityMetric), cache)
		if err != nil {
			logger.Error("index reload failed", "error", err)
			utils.RespondWithUnavailable(c, "No loadable index on disk")
			return
		}
		handle.Swap(retriever)
		m := retriever.Manifest()
		logger.Info("index reloaded", "chunks", m.ChunkCount, "built_at", m.BuiltAt)
		c.JSON(http.StatusOK, gin.H{"chunks": m.ChunkCount, "built_at": m.BuiltAt})
	})
}
