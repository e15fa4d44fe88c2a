package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"site-assistant/internal/ai"
	"site-assistant/internal/config"
	"site-assistant/internal/index"
	"site-assistant/internal/logger"
	"site-assistant/models"
	"site-assistant/services"
)

// Builds the vector index from the current document snapshot and swaps it
// into place atomically. Safe to run while the query server is up; the
// server picks up the new version on /admin/reload or restart.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	docs, err := loadSnapshot(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to load snapshot:", err)
	}
	if len(docs) == 0 {
		logger.Warn("snapshot is empty, building an empty index")
	}

	embedder, err := ai.NewClient(cfg, nil)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}

	chunker := services.NewChunker(cfg.MaxChunkChars, cfg.ChunkOverlapChars)
	builder := services.NewBuilder(chunker, embedder, index.Metric(cfg.SimilarityMetric))

	summary, err := builder.BuildAndSave(ctx, docs, cfg.IndexDir, cfg.MaxChunkChars, cfg.ChunkOverlapChars)
	if err != nil {
		log.Fatal("Build failed:", err)
	}

	logger.Info("index built", "dir", cfg.IndexDir, "summary", summary.String())
}

func loadSnapshot(ctx context.Context, cfg *config.Config) ([]models.Document, error) {
	if cfg.SnapshotBackend == "mongo" {
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		defer client.Disconnect(context.Background())
		return services.NewMongoSnapshotStore(client, cfg.DBName).Load(ctx)
	}
	return services.LoadSnapshot(cfg.SnapshotPath)
}
