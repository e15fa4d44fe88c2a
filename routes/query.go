package routes

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"site-assistant/internal/config"
	"site-assistant/internal/telemetry"
	"site-assistant/models"
	"site-assistant/services"
	"site-assistant/utils"

	"github.com/gin-gonic/gin"
)

// IndexHandle holds the current retriever and allows swapping it in place
// after a rebuild, without restarting the server.
type IndexHandle struct {
	mu        sync.RWMutex
	retriever *services.Retriever
}

func NewIndexHandle(r *services.Retriever) *IndexHandle {
	return &IndexHandle{retriever: r}
}

func (h *IndexHandle) Get() *services.Retriever {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.retriever
}

func (h *IndexHandle) Swap(r *services.Retriever) {
	h.mu.Lock()
	h.retriever = r
	h.mu.Unlock()
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

type queryHit struct {
	ChunkID   string  `json:"chunk_id"`
	SourceURL string  `json:"source_url"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text"`
	Score     float32 `json:"score"`
	Rank      int     `json:"rank"`
}

type queryResponse struct {
	Query   string     `json:"query"`
	Results []queryHit `json:"results"`
	TookMS  int64      `json:"took_ms"`
}

// SetupQueryRoutes registers the public retrieval endpoints.
func SetupQueryRoutes(router *gin.Engine, cfg *config.Config, handle *IndexHandle, metrics *telemetry.Metrics) {
	router.POST("/query", func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		k := req.TopK
		if k <= 0 {
			k = cfg.DefaultTopK
		}

		start := time.Now()
		results, err := handle.Get().Retrieve(c.Request.Context(), req.Query, k)
		took := time.Since(start)

		if err != nil {
			if metrics != nil {
				metrics.RecordQuery("error", took.Seconds(), 0)
			}
			switch {
			case errors.Is(err, models.ErrInvalidInput):
				utils.RespondWithBadRequest(c, "Query must be non-empty and top_k positive", nil)
			case errors.Is(err, models.ErrEmbeddingService):
				utils.RespondWithUnavailable(c, "Embedding service unavailable, try again later")
			default:
				utils.RespondWithInternalError(c, "Retrieval failed", nil)
			}
			return
		}

		hits := make([]queryHit, 0, len(results))
		for _, r := range results {
			hits = append(hits, queryHit{
				ChunkID:   r.Chunk.ChunkID,
				SourceURL: r.Chunk.SourceURL,
				Title:     r.Chunk.Title,
				Text:      r.Chunk.Text,
				Score:     r.Score,
				Rank:      r.Rank,
			})
		}

		if metrics != nil {
			metrics.RecordQuery("ok", took.Seconds(), len(hits))
		}
		c.JSON(http.StatusOK, queryResponse{
			Query:   req.Query,
			Results: hits,
			TookMS:  took.Milliseconds(),
		})
	})

	router.GET("/index/stats", func(c *gin.Context) {
		r := handle.Get()
		m := r.Manifest()
		c.JSON(http.StatusOK, gin.H{
			"embedding_model_id": m.EmbeddingModelID,
			"dimension":          m.Dimension,
			"metric":             m.Metric,
			"max_chunk_chars":    m.MaxChunkChars,
			"overlap_chars":      m.OverlapChars,
			"built_at":           m.BuiltAt,
			"document_count":     m.DocumentCount,
			"chunk_count":        m.ChunkCount,
			"vectors":            r.Size(),
		})
	})
}
