package main

import (
	"context"
	"flag"
	"log"

	"site-assistant/internal/config"
	"site-assistant/internal/crawler"
	"site-assistant/internal/logger"
	"site-assistant/services"
)

// Crawls the configured site and writes the document snapshot. Run this
// before building an index, or let the background worker do both.
func main() {
	startURL := flag.String("url", "", "start URL (overrides CRAWL_START_URL)")
	maxPages := flag.Int("max-pages", 0, "page limit (overrides CRAWL_MAX_PAGES)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	url := *startURL
	if url == "" {
		url = cfg.CrawlStartURL
	}
	if url == "" {
		log.Fatal("No start URL: pass -url or set CRAWL_START_URL")
	}
	pages := *maxPages
	if pages <= 0 {
		pages = cfg.CrawlMaxPages
	}

	docs, err := crawler.CrawlSite(crawler.Config{
		StartURL:       url,
		MaxPages:       pages,
		AllowedDomains: cfg.AllowedDomains,
		Delay:          cfg.CrawlDelay,
		Timeout:        cfg.CrawlTimeout,
		RenderJS:       cfg.CrawlRenderJS,
	})
	if err != nil {
		log.Fatal("Crawl failed:", err)
	}

	if cfg.SnapshotBackend == "mongo" {
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer client.Disconnect(context.Background())

		store := services.NewMongoSnapshotStore(client, cfg.DBName)
		if err := store.Replace(context.Background(), docs); err != nil {
			log.Fatal("Failed to store snapshot:", err)
		}
		logger.Info("snapshot stored in mongo", "documents", len(docs), "db", cfg.DBName)
		return
	}

	if err := services.SaveSnapshot(cfg.SnapshotPath, docs); err != nil {
		log.Fatal("Failed to write snapshot:", err)
	}
	logger.Info("snapshot written", "documents", len(docs), "path", cfg.SnapshotPath)
}
