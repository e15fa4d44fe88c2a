package main

import (
	"context"
	"log"

	"site-assistant/internal/ai"
	"site-assistant/internal/config"
	"site-assistant/internal/logger"
	"site-assistant/internal/queue"
	"site-assistant/internal/telemetry"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	}

	embedder, err := ai.NewClient(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}

	var mongoClient *mongo.Client
	if cfg.SnapshotBackend == "mongo" {
		mongoClient, err = config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer mongoClient.Disconnect(context.Background())
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			// Crawls and rebuilds are heavyweight; one of each at a time.
			Concurrency: 2,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(cfg, embedder, mongoClient, asynqClient, metrics)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskCrawlSite, processor.ProcessCrawlSite)
	mux.HandleFunc(queue.TaskRebuildIndex, processor.ProcessRebuildIndex)

	logger.Info("worker starting", "redis", redisOpt.Addr)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
