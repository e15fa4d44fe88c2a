package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"site-assistant/internal/ai"
	"site-assistant/internal/config"
	"site-assistant/internal/crawler"
	"site-assistant/internal/index"
	"site-assistant/internal/logger"
	"site-assistant/internal/telemetry"
	"site-assistant/models"
	"site-assistant/services"
)

const (
	TaskCrawlSite    = "site:crawl"
	TaskRebuildIndex = "index:rebuild"
)

type CrawlSitePayload struct {
	StartURL string `json:"start_url"`
	MaxPages int    `json:"max_pages"`
	// RebuildAfter chains an index rebuild once the snapshot is refreshed.
	RebuildAfter bool `json:"rebuild_after"`
}

type RebuildIndexPayload struct {
	Reason string `json:"reason"`
}

// Task creators
func NewCrawlSiteTask(startURL string, maxPages int, rebuildAfter bool) (*asynq.Task, error) {
	payload, err := json.Marshal(CrawlSitePayload{
		StartURL:     startURL,
		MaxPages:     maxPages,
		RebuildAfter: rebuildAfter,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskCrawlSite,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
		asynq.TaskID(TaskCrawlSite),
	), nil
}

func NewRebuildIndexTask(reason string) (*asynq.Task, error) {
	payload, err := json.Marshal(RebuildIndexPayload{Reason: reason})
	if err != nil {
		return nil, err
	}

	// The fixed task ID makes rebuilds mutually exclusive: while one is
	// pending or running, enqueueing another fails with ErrTaskIDConflict.
	// The index swap assumes a single writer.
	return asynq.NewTask(
		TaskRebuildIndex,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(20*time.Minute),
		asynq.Queue("critical"),
		asynq.TaskID(TaskRebuildIndex),
	), nil
}

// TaskProcessor executes background crawl and rebuild jobs.
type TaskProcessor struct {
	cfg         *config.Config
	embedder    ai.Embedder
	mongoClient *mongo.Client
	asynqClient *asynq.Client
	metrics     *telemetry.Metrics
}

func NewTaskProcessor(cfg *config.Config, embedder ai.Embedder, mongoClient *mongo.Client, asynqClient *asynq.Client, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		embedder:    embedder,
		mongoClient: mongoClient,
		asynqClient: asynqClient,
		metrics:     metrics,
	}
}

// ProcessCrawlSite crawls the configured site and replaces the document
// snapshot with the fresh pages.
func (p *TaskProcessor) ProcessCrawlSite(ctx context.Context, t *asynq.Task) error {
	var payload CrawlSitePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal crawl payload: %v: %w", err, asynq.SkipRetry)
	}

	startURL := payload.StartURL
	if startURL == "" {
		startURL = p.cfg.CrawlStartURL
	}
	if startURL == "" {
		return fmt.Errorf("no start URL configured: %w", asynq.SkipRetry)
	}
	maxPages := payload.MaxPages
	if maxPages <= 0 {
		maxPages = p.cfg.CrawlMaxPages
	}

	logger.Info("crawl task started", "start_url", startURL, "max_pages", maxPages)

	docs, err := crawler.CrawlSite(crawler.Config{
		StartURL:       startURL,
		MaxPages:       maxPages,
		AllowedDomains: p.cfg.AllowedDomains,
		Delay:          p.cfg.CrawlDelay,
		Timeout:        p.cfg.CrawlTimeout,
		RenderJS:       p.cfg.CrawlRenderJS,
	})
	if err != nil {
		return fmt.Errorf("crawl %s: %w", startURL, err)
	}

	if err := p.saveSnapshot(ctx, docs); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	logger.Info("crawl task finished", "pages", len(docs))

	if payload.RebuildAfter && p.asynqClient != nil {
		task, err := NewRebuildIndexTask("post-crawl")
		if err != nil {
			return err
		}
		if _, err := p.asynqClient.EnqueueContext(ctx, task); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				logger.Info("rebuild already queued, skipping chained enqueue")
				return nil
			}
			return fmt.Errorf("enqueue rebuild: %w", err)
		}
	}
	return nil
}

// ProcessRebuildIndex rebuilds the vector index from the current snapshot
// and atomically swaps it into place.
func (p *TaskProcessor) ProcessRebuildIndex(ctx context.Context, t *asynq.Task) error {
	var payload RebuildIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal rebuild payload: %v: %w", err, asynq.SkipRetry)
	}

	docs, err := p.loadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	logger.Info("rebuild task started", "reason", payload.Reason, "documents", len(docs))
	start := time.Now()

	chunker := services.NewChunker(p.cfg.MaxChunkChars, p.cfg.ChunkOverlapChars)
	builder := services.NewBuilder(chunker, p.embedder, index.Metric(p.cfg.SimilarityMetric))

	summary, err := builder.BuildAndSave(ctx, docs, p.cfg.IndexDir, p.cfg.MaxChunkChars, p.cfg.ChunkOverlapChars)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordIndexBuild(time.Since(start).Seconds(), 0, "failed")
		}
		return fmt.Errorf("rebuild index: %w", err)
	}

	if p.metrics != nil {
		p.metrics.RecordIndexBuild(summary.Duration.Seconds(), summary.ChunksProduced, "ok")
	}
	logger.Info("rebuild task finished", "summary", summary.String())
	return nil
}

func (p *TaskProcessor) saveSnapshot(ctx context.Context, docs []models.Document) error {
	if p.cfg.SnapshotBackend == "mongo" {
		if p.mongoClient == nil {
			return fmt.Errorf("snapshot backend is mongo but no client is connected")
		}
		store := services.NewMongoSnapshotStore(p.mongoClient, p.cfg.DBName)
		return store.Replace(ctx, docs)
	}
	return services.SaveSnapshot(p.cfg.SnapshotPath, docs)
}

func (p *TaskProcessor) loadSnapshot(ctx context.Context) ([]models.Document, error) {
	if p.cfg.SnapshotBackend == "mongo" {
		if p.mongoClient == nil {
			return nil, fmt.Errorf("snapshot backend is mongo but no client is connected")
		}
		store := services.NewMongoSnapshotStore(p.mongoClient, p.cfg.DBName)
		return store.Load(ctx)
	}
	return services.LoadSnapshot(p.cfg.SnapshotPath)
}
